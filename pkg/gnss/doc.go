// Package gnss reads position fixes from an NMEA 0183 receiver on a
// serial port.
//
// The parser handles the two sentences the fix pipeline needs: RMC for
// coordinates, speed and time, and GGA for altitude and satellite count.
// Receiver exposes the driver through the asynchronous request protocol
// the position acquirer expects: one session per request, resolved by a
// single callback, released by the acquirer when the cycle finalizes.
package gnss
