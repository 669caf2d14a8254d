// Package language validates and renders BCP 47 language tags.
//
// Voice and subtitle language selections are normalized here before they
// reach the submission request, and display names are consolidated so the
// CLI and notifications render languages consistently.
package language
