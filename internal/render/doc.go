// Package render is the default notify.Renderer. It turns structured stage
// data into subject lines and HTML bodies for the client and referral
// audiences using embedded html/template files.
package render
