// Package rsyncstats defines the end-of-transfer statistics struct shared
// between internal/session (wire encoding) and the receiver/sender
// orchestration layers, per spec.md §4.6 "transfer statistics".
//
// Grounded on the teacher's internal/rsyncstats.TransferStats (referenced,
// but not included, by the retrieved do.go/report): field names Read/
// Written/Size are kept; FlistBuildTimeMs/FlistXferTimeMs (protocol >= 29)
// and BandwidthSleptMs are additions spec.md §4.6 and §5 require that the
// partial retrieval's report() stub never read.
package rsyncstats

// TransferStats holds the counters exchanged at the end of one session.
type TransferStats struct {
	Read    int64 // total bytes read from the transport
	Written int64 // total bytes written to the transport
	Size    int64 // total size of files in the transfer

	FlistBuildTimeMs int64 // protocol >= 29 only
	FlistXferTimeMs  int64 // protocol >= 29 only

	BandwidthSleptMs int64 // time spent blocked in the bandwidth limiter

	FilesTransferred int
	FilesDeleted     int
}
