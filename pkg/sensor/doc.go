// Package sensor defines the sensor data model shared by every producer:
// the closed category enum, measurements and their value kinds, per-packet
// device error codes, and the periodic Runner that drives any Producer
// implementation on a shared cadence.
//
// A Runner samples its producer once per period and delivers a fresh Packet
// into a single dispatch channel. Packets are consumed immediately and never
// retained; all aggregation state lives in the report builder.
package sensor
