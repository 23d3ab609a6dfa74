package images

import (
	"crypto/md5"
	"encoding/hex"

	"gocv.io/x/gocv"
)

// Checksum returns a hex MD5 digest of the Mat's pixel data. Two frames with identical
// shape and content produce the same digest.
func Checksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "unreadable"
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
