// Package codec implements the transport-safe encoding applied to every
// report before it is handed to a link client.
//
// Reports are Base64-encoded (standard alphabet, '=' padding) into a
// caller-provided buffer. Encoding is all-or-nothing: if the output would
// not fit, nothing is written. The required capacity for n input bytes is
// EncodedLen(n), which reserves one byte beyond the Base64 text itself to
// match the device wire contract.
package codec
