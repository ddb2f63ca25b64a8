// Package link defines the wide-area link abstraction the dispatcher and
// mode controller operate on. A link client owns one transport session to
// the cloud endpoint; the core only ever reads its status, asks it to open
// or close, and publishes finished reports fire-and-forget.
//
// Two interchangeable link kinds exist: the short-range local-network link
// and the cellular link. Both are MQTT-backed (see the mqttlink
// subpackage); the core never depends on the concrete transport.
package link
