package sale

import "encoding/binary"

var (
	storeKeyBytes  = []byte("sale/store")
	epochPrefix    = []byte("sale/epoch/")
	customerPrefix = []byte("sale/customer/")
	promoterPrefix = []byte("sale/promoter/")
)

func storeKey() []byte {
	return storeKeyBytes
}

func epochKey(id int16) []byte {
	buf := make([]byte, len(epochPrefix)+2)
	copy(buf, epochPrefix)
	binary.BigEndian.PutUint16(buf[len(epochPrefix):], uint16(id))
	return buf
}

func customerKey(addr [20]byte) []byte {
	buf := make([]byte, len(customerPrefix)+len(addr))
	copy(buf, customerPrefix)
	copy(buf[len(customerPrefix):], addr[:])
	return buf
}

func promoterKey(addr [20]byte) []byte {
	buf := make([]byte, len(promoterPrefix)+len(addr))
	copy(buf, promoterPrefix)
	copy(buf[len(promoterPrefix):], addr[:])
	return buf
}
