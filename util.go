package framevk

import "unsafe"

func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// checkExisting filters required down to the names present in actual.
// All returned names are null-terminated.
func checkExisting(actual, required []string) (existing []string, missing int) {
	existing = make([]string, 0, len(required))
	for _, req := range required {
		req = safeString(req)
		found := false
		for _, name := range actual {
			if safeString(name) == req {
				found = true
				break
			}
		}
		if found {
			existing = append(existing, req)
		} else {
			missing++
		}
	}
	return existing, missing
}

// sliceUint32 reinterprets SPIR-V bytes as words. len(data) must be a multiple of 4.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// bytesOf views a value as raw bytes for memcpy into mapped memory.
func bytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// sliceBytes views a slice of plain values as raw bytes.
func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
