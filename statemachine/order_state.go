package statemachine

import (
	"fmt"
	"strings"

	"food-ordering-api/models"
)

type Actor string

const (
	ActorRestaurant Actor = "restaurant"
	ActorCustomer   Actor = "customer"
	ActorDriver     Actor = "driver"
	ActorSystem     Actor = "system"
	// ActorAdmin may move any non-terminal order to any other status. It has
	// no rows in the table below.
	ActorAdmin Actor = "admin"
)

// Transition is one allowed status change and who may perform it.
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor Actor              `json:"actor"`
}

var validTransitions = []Transition{
	{From: models.StatusNew, To: models.StatusConfirmed, Actor: ActorRestaurant},
	{From: models.StatusNew, To: models.StatusConfirmed, Actor: ActorSystem},
	{From: models.StatusConfirmed, To: models.StatusPreparing, Actor: ActorRestaurant},
	{From: models.StatusPreparing, To: models.StatusReadyForPickup, Actor: ActorRestaurant},

	{From: models.StatusNew, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: ActorRestaurant},
	{From: models.StatusNew, To: models.StatusCancelled, Actor: ActorCustomer},
	{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorCustomer},

	{From: models.StatusReadyForPickup, To: models.StatusAssigned, Actor: ActorDriver},
	{From: models.StatusAssigned, To: models.StatusInTransit, Actor: ActorDriver},
	{From: models.StatusInTransit, To: models.StatusDelivered, Actor: ActorDriver},
}

type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool, len(validTransitions))
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom lists the statuses reachable from status by actor, or
// by anyone when actor is empty.
func ValidTransitionsFrom(status models.OrderStatus, actor Actor) []models.OrderStatus {
	if actor == ActorAdmin {
		if status.Terminal() {
			return nil
		}
		var nexts []models.OrderStatus
		for _, s := range models.AllOrderStatuses {
			if s != status {
				nexts = append(nexts, s)
			}
		}
		return nexts
	}

	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From != status || seen[t.To] {
			continue
		}
		if actor != "" && t.Actor != actor {
			continue
		}
		nexts = append(nexts, t.To)
		seen[t.To] = true
	}
	return nexts
}

// TransitionError explains a rejected status change.
type TransitionError struct {
	From    models.OrderStatus
	To      models.OrderStatus
	Actor   Actor
	Allowed []models.OrderStatus
}

func (e *TransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		parts := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			parts[i] = string(s)
		}
		allowed = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("cannot move order from %s to %s as %s (allowed: %s)", e.From, e.To, e.Actor, allowed)
}

// CanTransition returns a *TransitionError when actor may not move an order
// from one status to the other.
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	if !to.Valid() {
		return &TransitionError{From: from, To: to, Actor: actor, Allowed: ValidTransitionsFrom(from, actor)}
	}
	if actor == ActorAdmin {
		if !from.Terminal() && from != to {
			return nil
		}
	} else if transitionMap[transitionKey{from, to, actor}] {
		return nil
	}
	return &TransitionError{From: from, To: to, Actor: actor, Allowed: ValidTransitionsFrom(from, actor)}
}

// GetAllTransitions returns the table for documentation endpoints.
func GetAllTransitions() []Transition {
	out := make([]Transition, len(validTransitions))
	copy(out, validTransitions)
	return out
}
