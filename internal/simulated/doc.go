// Package simulated provides the gateway's simulation mode: synthetic
// waveform producers for the bus sensors, a battery producer backed by
// real host vitals, and a GNSS requester that resolves fixes along a
// fixed track. A seed makes every waveform reproducible.
package simulated
