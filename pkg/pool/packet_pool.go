package pool

import "sync"

// PacketPool is a strongly typed wrapper around a sync.Pool for the
// fixed-size scratch buffers the ingress reader reads a single datagram
// into. Pooling them avoids an allocation per received packet.
type PacketPool struct {
	p    sync.Pool
	size int
}

// NewPacketPool returns a pool of []byte buffers of the given size.
func NewPacketPool(size int) *PacketPool {
	return &PacketPool{
		p: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
		size: size,
	}
}

// Get returns a buffer of Size() bytes, owned by the caller until Put.
func (p *PacketPool) Get() []byte {
	return p.p.Get().([]byte)
}

// Put returns buf to the pool. buf must have been obtained from Get and must
// not be referenced again afterward.
func (p *PacketPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.p.Put(buf[:p.size])
}

// Size returns the fixed buffer size this pool hands out.
func (p *PacketPool) Size() int {
	return p.size
}
