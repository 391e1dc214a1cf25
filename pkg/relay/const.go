package relay

import "time"

// MTU is the fixed egress datagram capacity, matching the downstream collector's
// read buffer size. Every egress datagram is packed to at most this many bytes.
const MTU = 1450

// BufferCount is the number of buffers in the double-buffered egress ring.
const BufferCount = 16

// NumSlots bounds the slot table. Once every slot is in use, the next new
// metric name triggers a flush before a slot is added for it.
const NumSlots = MTU / 7

// MaxCounterLength is the room reserved for a re-serialized counter payload
// ("%.15g|c\n") when checking whether a counter sample still fits in MTU.
// Payloads carrying a sign, a decimal point and all 15 digits, or an
// exponent, are longer than this (up to 25 bytes).
const MaxCounterLength = 18

// MaxDownstreamNum bounds how many resolved addresses the resolver hands to
// the host set in a single refresh.
const MaxDownstreamNum = 32

// MaxPacketsPerSocket bounds the lifetime of an egress socket's ephemeral
// source port before it's rotated.
const MaxPacketsPerSocket = 1000

// HealthCheckRequest is the literal probe request body. It carries no
// trailing newline.
const HealthCheckRequest = "health"

// HealthCheckUpResponse is the exact prefix that marks a probe response
// as "alive".
const HealthCheckUpResponse = "health: up\n"

// HealthCheckBufSize is the size of the read buffer used to receive a probe
// response.
const HealthCheckBufSize = 32

// DefaultDNSRefreshInterval is used when the configuration omits
// dns_refresh_interval.
const DefaultDNSRefreshInterval = 60 * time.Second

// DefaultHealthCheckInterval is used when the configuration omits
// downstream_health_check_interval.
const DefaultHealthCheckInterval = 1 * time.Second

// DefaultLogLevel is used when the configuration omits log_level. It
// corresponds to TRACE.
const DefaultLogLevel = 0
