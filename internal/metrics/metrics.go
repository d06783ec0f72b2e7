package metrics

import "sync/atomic"

var messagesPublished int64
var deliveries int64
var publishesNoMatch int64
var subscribesTotal int64
var unsubscribesTotal int64

func IncPublished() { atomic.AddInt64(&messagesPublished, 1) }

func AddDeliveries(n int64) { atomic.AddInt64(&deliveries, n) }

func IncNoMatch() { atomic.AddInt64(&publishesNoMatch, 1) }

func IncSubscribes() { atomic.AddInt64(&subscribesTotal, 1) }

func AddUnsubscribes(n int64) { atomic.AddInt64(&unsubscribesTotal, n) }

func Snapshot() map[string]int64 {
	return map[string]int64{
		"messages_published": atomic.LoadInt64(&messagesPublished),
		"deliveries":         atomic.LoadInt64(&deliveries),
		"publishes_no_match": atomic.LoadInt64(&publishesNoMatch),
		"subscribes":         atomic.LoadInt64(&subscribesTotal),
		"unsubscribes":       atomic.LoadInt64(&unsubscribesTotal),
	}
}
