// Package payload builds the JSON record pushed to the cloud uploader from an
// organize notification.
//
// Build never fails: each field falls back independently (media info, then
// meta, then an empty value), and the transfer-history enrichment is logged and
// dropped on error. Title, overview and message are NFC-normalized.
package payload
