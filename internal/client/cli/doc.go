// Package cli provides the gradekeeper command-line client.
//
// Every command opens the local stores under --data-dir, does its work and
// closes them again:
//
//	gradekeeper record save|get|list|update|delete|export|import|check
//	gradekeeper sync flush|pull|status|pending|history|run
//	gradekeeper storage usage|list|cleanup|audit
//
// "sync run" keeps the sync timer and the reachability watcher going until
// interrupted. Set GRADEKEEPER_PASSPHRASE to read or write encrypted records
// without a prompt.
package cli
