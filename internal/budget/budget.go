// Package budget is the single-writer token accounting actor: hourly/daily
// rolling windows with four priority reserves. All reads and writes are
// serialized through one goroutine's channel so admission decisions never race.
package budget

import (
	"context"
	"time"

	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/model"
)

type reserveRequest struct {
	priority  model.BudgetPriority
	estimate  int64
	replyTo   chan reserveReply
}

type reserveReply struct {
	token   model.ReservationToken
	refused bool
}

type settleRequest struct {
	token  model.ReservationToken
	actual int64
}

type statusRequest struct {
	replyTo chan model.BudgetStatus
}

type reservation struct {
	priority model.BudgetPriority
	estimate int64
	window   string // "hourly" or "daily"
}

// Manager is the budget actor. Construct with New and call Run in its own
// goroutine; all other methods send on internal channels. Settle does not wait
// for a reply; the others block for one.
type Manager struct {
	hourlyLimit int64
	dailyLimit  int64

	reserveCh chan reserveRequest
	settleCh  chan settleRequest
	statusCh  chan statusRequest

	publisher *bus.Bus
}

func New(publisher *bus.Bus, hourlyLimit, dailyLimit int64) *Manager {
	return &Manager{
		hourlyLimit: hourlyLimit,
		dailyLimit:  dailyLimit,
		reserveCh:   make(chan reserveRequest),
		settleCh:    make(chan settleRequest),
		statusCh:    make(chan statusRequest),
		publisher:   publisher,
	}
}

// Run executes the actor loop until ctx is cancelled. Call it once from a
// dedicated goroutine at startup.
func (m *Manager) Run(ctx context.Context) {
	hourly := model.BudgetWindow{Limit: m.hourlyLimit, WindowStart: time.Now(), Duration: time.Hour}
	daily := model.BudgetWindow{Limit: m.dailyLimit, WindowStart: time.Now(), Duration: 24 * time.Hour}
	reserves := map[model.ReservationToken]reservation{}
	var seq int64

	rollIfExpired := func(w *model.BudgetWindow) {
		if time.Since(w.WindowStart) >= w.Duration {
			w.Used = 0
			w.Reserved = 0
			w.WindowStart = time.Now()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-m.reserveCh:
			rollIfExpired(&hourly)
			rollIfExpired(&daily)

			projectedHourly := hourly.Used + hourly.Reserved + req.estimate
			projectedDaily := daily.Used + daily.Reserved + req.estimate

			overLimit := projectedHourly > hourly.Limit || projectedDaily > daily.Limit
			criticalException := req.priority == model.PriorityCritical && hourly.Limit-hourly.Used-hourly.Reserved > 0

			if overLimit && !criticalException {
				req.replyTo <- reserveReply{refused: true}
				continue
			}

			seq++
			token := model.ReservationToken(time.Now().UTC().Format("20060102T150405.000000000") + "-" + priorityTag(req.priority, seq))
			hourly.Reserved += req.estimate
			daily.Reserved += req.estimate
			reserves[token] = reservation{priority: req.priority, estimate: req.estimate}
			req.replyTo <- reserveReply{token: token}
			m.publishUpdate(hourly, daily)

		case req := <-m.settleCh:
			r, ok := reserves[req.token]
			if !ok {
				continue
			}
			delete(reserves, req.token)
			hourly.Reserved -= r.estimate
			daily.Reserved -= r.estimate
			if hourly.Reserved < 0 {
				hourly.Reserved = 0
			}
			if daily.Reserved < 0 {
				daily.Reserved = 0
			}
			// Overshoot policy: accept actuals unconditionally, refuse only the
			// next admission if it would exceed the window.
			hourly.Used += req.actual
			daily.Used += req.actual
			m.publishUpdate(hourly, daily)

		case req := <-m.statusCh:
			byPriority := map[model.BudgetPriority]int64{}
			for _, r := range reserves {
				byPriority[r.priority] += r.estimate
			}
			req.replyTo <- model.BudgetStatus{Hourly: hourly, Daily: daily, Reserves: byPriority}
		}
	}
}

func priorityTag(p model.BudgetPriority, seq int64) string {
	return string(p) + "-" + itoa(seq)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (m *Manager) publishUpdate(hourly, daily model.BudgetWindow) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(bus.TopicBudgetUpdate, model.BudgetStatus{Hourly: hourly, Daily: daily})
}

// Reserve performs an admission check. Refused reservations hold nothing.
func (m *Manager) Reserve(ctx context.Context, priority model.BudgetPriority, estimate int64) (model.ReservationToken, bool) {
	reply := make(chan reserveReply, 1)
	select {
	case m.reserveCh <- reserveRequest{priority: priority, estimate: estimate, replyTo: reply}:
	case <-ctx.Done():
		return "", false
	}
	r := <-reply
	return r.token, !r.refused
}

// Settle replaces a reservation's estimate with the actual usage. Overshoot is
// always accepted; it is reflected only in future admission decisions.
func (m *Manager) Settle(token model.ReservationToken, actual int64) {
	m.settleCh <- settleRequest{token: token, actual: actual}
}

func (m *Manager) Status(ctx context.Context) model.BudgetStatus {
	reply := make(chan model.BudgetStatus, 1)
	select {
	case m.statusCh <- statusRequest{replyTo: reply}:
	case <-ctx.Done():
		return model.BudgetStatus{}
	}
	return <-reply
}
