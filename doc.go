// Command-free library module go-coros provides stackful, asymmetric
// coroutines (package coro) and an N:M task scheduler built on top of them
// (package sched). See the coro and sched package docs for the full API.
package coros
