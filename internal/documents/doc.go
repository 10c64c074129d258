// Package documents resolves screening and confirmation document ids into
// attachable bytes. Metadata lives in the store catalog and content lives in
// a blob backend selected by configuration (local filesystem, S3, or memory).
package documents
