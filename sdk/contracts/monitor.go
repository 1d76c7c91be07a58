package contracts

// Monitor tracks whether a MIDI input is usable by the application.
//
// Presentation code only reads Status (or subscribes to it) and calls Connect
// when the user explicitly asks to connect. A Monitor never triggers a
// permission prompt on its own unless the host reports the permission as
// already granted.
type Monitor interface {
	Status() ConnectivityStatus // Current status.
	State() State               // Current state machine state.
	// Subscribe registers onChange to be called, in order, on every status
	// change. Callbacks run on the monitor's event goroutine and must not block.
	Subscribe(onChange func(ConnectivityStatus)) (unsubscribe func())
	// Watch is Subscribe plus one initial delivery of the current status,
	// made on the event goroutine so it is ordered with later changes.
	Watch(onChange func(ConnectivityStatus)) (unsubscribe func())
	Connect()     // Opens (or refreshes) the access session. Never blocks.
	Close() error // Releases the session and stops delivering events.
}
