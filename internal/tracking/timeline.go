package tracking

import "time"

const (
	elapsedStep   = 20 * time.Minute
	estimatedStep = 30 * time.Minute
)

// Step is one stage of the rendered order timeline. Exactly one of
// Completed, Current and Pending is set.
type Step struct {
	Key         Status    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	At          time.Time `json:"at"`
	Estimated   bool      `json:"estimated"`
	Completed   bool      `json:"completed"`
	Current     bool      `json:"current"`
	Pending     bool      `json:"pending"`
	Progress    int       `json:"progress,omitempty"`
}

type stage struct {
	key         Status
	title       string
	description string
	icon        string
}

var stages = []stage{
	{StatusPending, "Order Placed", "We have received your order", "clock"},
	{StatusOrderPreparing, "Preparing Order", "The store is picking your items", "bag"},
	{StatusOrderConfirmed, "Order Confirmed", "The store has confirmed your order", "checkmark.circle"},
	{StatusReadyToDispatch, "Ready to Dispatch", "Your order is packed and waiting for a rider", "shippingbox"},
	{StatusOutForDelivery, "Out for Delivery", "Your order is on the way", "bicycle"},
	{StatusDelivered, "Delivered", "Your order has been delivered", "house"},
}

// BuildTimeline expands a canonical status into the six-stage timeline.
// Statuses that are not canonical anchor the timeline at the first stage.
// Reached stages are stamped createdAt + i*20m; stages still ahead are
// estimated at createdAt + i*30m, except the last one which uses
// deliverySlot when it is known.
func BuildTimeline(current Status, progress int, createdAt time.Time, deliverySlot *time.Time) []Step {
	currentIdx := current.Index()
	if currentIdx < 0 {
		currentIdx = 0
	}

	steps := make([]Step, len(stages))
	for i, st := range stages {
		step := Step{
			Key:         st.key,
			Title:       st.title,
			Description: st.description,
			Icon:        st.icon,
			Completed:   i < currentIdx,
			Current:     i == currentIdx,
			Pending:     i > currentIdx,
		}
		switch {
		case step.Pending && i == len(stages)-1 && deliverySlot != nil:
			step.At = *deliverySlot
			step.Estimated = true
		case step.Pending:
			step.At = createdAt.Add(time.Duration(i) * estimatedStep)
			step.Estimated = true
		default:
			step.At = createdAt.Add(time.Duration(i) * elapsedStep)
		}
		if step.Current {
			step.Progress = progress
		}
		steps[i] = step
	}
	return steps
}
