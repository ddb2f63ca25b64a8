// Package report builds the status documents published to the cloud.
//
// A Builder accumulates per-round sensor packets into one of two shapes:
// an aggregated round, where every category contributes one object to a
// single device envelope, or per-sensor messages, where each packet becomes
// a self-contained document on the category's own topic. Finished documents
// are Base64-encoded via pkg/codec and sized against the active link's
// maximum message size before they reach the dispatcher.
//
// The document format is fixed by the cloud contract and reproduced
// byte-exactly here:
//
//	{"Dev":"<id>","Sensors":[{"ID":"ENV","samples":[{"nm":"tmp","vl":23.457}]},...]}
//
// Error packets render as {"ID":"<name>","err":"<code>"}. Floats carry 3
// decimals, position floats 7, integers none.
package report
