// Package session tracks the signed-in platform user.
//
// Regions that are scoped to a user (the inventory, children of an owned
// vatom) need to know who that user is when they are created and must react
// when the user changes. The Manager holds the current Info and notifies
// subscribers on every change; subscribers are called synchronously, outside
// the manager's lock, in the order changes were made.
//
// Example Usage:
//
//	sessions := session.NewManager()
//	cancel := sessions.Subscribe(func(info session.Info) { ... })
//	defer cancel()
//	sessions.Set(session.Info{UserID: "u1"})
package session
