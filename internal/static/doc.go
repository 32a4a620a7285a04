// Package static serves the page shell and its assets.
//
// Every page load parses index.html afresh and runs the client bootstrap
// on it, so the browser receives the terminal already mounted under the
// configured mount point. Assets come from an embedded default or from a
// directory on disk, which is watched for changes.
package static
