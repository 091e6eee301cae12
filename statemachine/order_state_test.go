package statemachine

import (
	"errors"
	"testing"

	"food-ordering-api/models"

	"github.com/stretchr/testify/assert"
)

func TestActorTable(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
		actor    Actor
		ok       bool
	}{
		{models.StatusNew, models.StatusConfirmed, ActorRestaurant, true},
		{models.StatusNew, models.StatusConfirmed, ActorSystem, true},
		{models.StatusNew, models.StatusConfirmed, ActorCustomer, false},
		{models.StatusConfirmed, models.StatusPreparing, ActorRestaurant, true},
		{models.StatusPreparing, models.StatusReadyForPickup, ActorRestaurant, true},
		{models.StatusPreparing, models.StatusCancelled, ActorRestaurant, true},
		{models.StatusPreparing, models.StatusCancelled, ActorCustomer, false},
		{models.StatusConfirmed, models.StatusCancelled, ActorCustomer, true},
		{models.StatusReadyForPickup, models.StatusAssigned, ActorDriver, true},
		{models.StatusReadyForPickup, models.StatusAssigned, ActorRestaurant, false},
		{models.StatusAssigned, models.StatusInTransit, ActorDriver, true},
		{models.StatusInTransit, models.StatusDelivered, ActorDriver, true},
		{models.StatusNew, models.StatusDelivered, ActorDriver, false},
		{models.StatusDelivered, models.StatusCancelled, ActorRestaurant, false},
	}
	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to, tc.actor)
		if tc.ok {
			assert.NoError(t, err, "%s %s->%s", tc.actor, tc.from, tc.to)
		} else {
			assert.Error(t, err, "%s %s->%s", tc.actor, tc.from, tc.to)
		}
	}
}

func TestAdminForce(t *testing.T) {
	assert.NoError(t, CanTransition(models.StatusNew, models.StatusDelivered, ActorAdmin))
	assert.NoError(t, CanTransition(models.StatusInTransit, models.StatusCancelled, ActorAdmin))
	assert.Error(t, CanTransition(models.StatusDelivered, models.StatusNew, ActorAdmin))
	assert.Error(t, CanTransition(models.StatusCancelled, models.StatusNew, ActorAdmin))
	assert.Error(t, CanTransition(models.StatusNew, models.StatusNew, ActorAdmin))
	assert.Error(t, CanTransition(models.StatusNew, "bogus", ActorAdmin))

	assert.Len(t, ValidTransitionsFrom(models.StatusNew, ActorAdmin), len(models.AllOrderStatuses)-1)
	assert.Empty(t, ValidTransitionsFrom(models.StatusDelivered, ActorAdmin))
}

func TestTransitionErrorListsAllowed(t *testing.T) {
	err := CanTransition(models.StatusNew, models.StatusPreparing, ActorCustomer)
	var te *TransitionError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, []models.OrderStatus{models.StatusCancelled}, te.Allowed)
	assert.Contains(t, err.Error(), "allowed: cancelled")
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	assert.Empty(t, ValidTransitionsFrom(models.StatusDelivered, ""))
	assert.Empty(t, ValidTransitionsFrom(models.StatusCancelled, ""))
	assert.ElementsMatch(t,
		[]models.OrderStatus{models.StatusConfirmed, models.StatusCancelled},
		ValidTransitionsFrom(models.StatusNew, ""))
}
