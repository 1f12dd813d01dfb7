package chat

// Broadcaster turns registry/activity mutations into fan-out notifications.
// Registry mutations broadcast the full online list (plus the incremental
// connect/disconnect notice); activity mutations broadcast only the
// {userId, activity} delta. The two shapes never cross: a connect never
// emits activity_updated and an activity change never emits users_online.
type Broadcaster struct {
	fanout *Fanout
}

func NewBroadcaster(f *Fanout) *Broadcaster {
	return &Broadcaster{fanout: f}
}

// Connected announces a registration: full online list to everyone, then
// the incremental user_connected notice.
func (b *Broadcaster) Connected(snap Snapshot, userID string) {
	b.fanout.Broadcast(snap.Conns, BuildUsersOnline(snap.Online))
	b.fanout.Broadcast(snap.Conns, BuildUserConnected(userID))
}

// Disconnected announces a removal: full online list, then the incremental
// user_disconnected notice.
func (b *Broadcaster) Disconnected(snap Snapshot, userID string) {
	b.fanout.Broadcast(snap.Conns, BuildUsersOnline(snap.Online))
	b.fanout.Broadcast(snap.Conns, BuildUserDisconnected(userID))
}

// Activity announces a label change as a delta only.
func (b *Broadcaster) Activity(conns []*Client, userID, activity string) {
	b.fanout.Broadcast(conns, BuildActivityUpdated(userID, activity))
}
