// Package vatom decodes platform payloads held in regions into typed
// projections.
//
// A vatom's faces and actions are shared by every vatom of the same
// template and are stored as separate objects; Project attaches them when it
// builds a *Vatom. Faces and actions themselves are not surfaced to readers.
package vatom
