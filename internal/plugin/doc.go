// Package plugin is the event gate between the host bus and the uploader.
//
// Every notification runs through Settings.Evaluate. Organize notifications
// that pass are turned into payloads, delivered, and written to the
// recent-push log with their real outcome. The cloud_upload_test plugin
// action runs the connectivity probe and reports the result as a site
// message.
package plugin
