// Package transport implements the narrow bus boundary the MAC/PHY
// Driver sequences against: register read/write/set/clear, bank
// select, indirect PHY access, and raw FIFO buffer streaming. The
// Driver never talks to a bus directly — it only calls a Transport.
package transport

// Transport is the contract between internal/machw's Driver and the
// physical (or simulated) ENC28J60 bus. Register addresses and PHY
// register numbers are the same values the Driver already resolves
// from the datasheet — Transport only moves bytes.
type Transport interface {
	ReadReg(reg byte) byte
	WriteReg(reg, data byte)
	SetReg(reg, mask byte)
	ClearReg(reg, mask byte)
	SetBank(reg byte)

	ReadPhy(reg byte) uint16
	WritePhy(reg byte, data uint16)

	ReadMemStart()
	ReadMem() byte
	ReadMemStop()

	WriteMemStart()
	WriteMem(data byte)
	WriteMemStop()

	// Close releases any bus resources (file descriptors, sockets).
	// A pure in-memory Transport may treat this as a no-op.
	Close() error
}
