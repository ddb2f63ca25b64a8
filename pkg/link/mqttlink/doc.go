// Package mqttlink implements link.Client over MQTT for both wide-area
// link kinds. The short-range profile talks to a local broker, resolved
// over mDNS when the configuration leaves the address empty; the cellular
// profile talks to the cloud broker over TLS with timings tuned for
// constrained modem sessions.
//
// Connect and disconnect run asynchronously; the mode controller observes
// their progress through Status and LastResult. Publishes are QoS-0
// fire-and-forget: the publish token is checked once and never retried.
package mqttlink
