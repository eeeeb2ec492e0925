package common

// MaxUploadBytes is the hard upper bound for a single document (50 MiB).
const MaxUploadBytes int64 = 50 << 20
