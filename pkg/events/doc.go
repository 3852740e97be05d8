/*
Package events carries session lifecycle notifications inside the process.

Session actors publish events such as session.created, participant.joined and
session.retired to a Broker. Subscribers receive them on buffered channels.
felt serve attaches a subscriber that writes an audit line per event.

Delivery is best effort. Publish drops the event when the broker queue is full
and broadcast skips subscribers whose buffer is full, so a slow consumer can
never stall a session.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	for ev := range sub {
		fmt.Println(ev.Type, ev.Session)
	}
*/
package events
