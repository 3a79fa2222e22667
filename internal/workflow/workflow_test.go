package workflow

import (
	"errors"
	"testing"
	"time"

	"giftpos/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	st, err := ParseStage("")
	require.NoError(t, err)
	assert.Equal(t, StagePending, st)

	st, err = ParseStage(" Shipped ")
	require.NoError(t, err)
	assert.Equal(t, StageShipped, st)

	_, err = ParseStage("lost")
	assert.True(t, IsValidation(err))
	assert.Equal(t, StagePending, Normalize("lost"))
}

func TestSequenceByName(t *testing.T) {
	seq, err := SequenceByName("")
	require.NoError(t, err)
	assert.Equal(t, 5, seq.Len())

	seq, err = SequenceByName("8")
	require.NoError(t, err)
	assert.Equal(t, 8, seq.Len())
	assert.Equal(t, StagePending, seq.First())
	assert.Equal(t, StageDelivered, seq.Last())

	_, err = SequenceByName("6")
	assert.Error(t, err)
}

func TestNextPrev_Clamp(t *testing.T) {
	for _, seq := range []Sequence{FiveStage, EightStage} {
		assert.Equal(t, seq.Last(), seq.Next(seq.Last()), "advance past last must be a no-op")
		assert.Equal(t, seq.First(), seq.Prev(seq.First()), "retreat past first must be a no-op")
	}
	assert.Equal(t, StageProduction, FiveStage.Next(StagePending))
	assert.Equal(t, StageDesign, EightStage.Next(StagePending))
	assert.Equal(t, StageShipped, FiveStage.Prev(StageDelivered))
	assert.Equal(t, StageReady, EightStage.Prev(StageShipped))
}

func TestIndex_StageOutsideSequence(t *testing.T) {
	// design/printing/qc are not in the 5-stage workflow; they sit between
	// pending and production canonically.
	assert.Equal(t, 0, FiveStage.Index(StageDesign))
	assert.Equal(t, 0, FiveStage.Index(StageQC))
	assert.Equal(t, StageProduction, FiveStage.Next(StagePrinting))
	assert.False(t, FiveStage.Contains(StageQC))
	assert.True(t, EightStage.Contains(StageQC))
}

func TestClassify(t *testing.T) {
	seq := FiveStage
	stages := seq.Stages()
	for i, cur := range stages {
		for j, tgt := range stages {
			d := seq.Classify(cur, tgt)
			switch {
			case j == i:
				assert.Equal(t, NoOp, d)
			case j > i:
				assert.Equal(t, Forward, d)
			default:
				assert.Equal(t, Backward, d)
			}
		}
	}
}

func TestCheckGuide(t *testing.T) {
	for _, st := range EightStage.Stages() {
		err := CheckGuide(st, nil)
		if st == StageShipped || st == StageDelivered {
			require.Error(t, err, st)
			assert.True(t, errors.Is(err, ErrGuideRequired))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, RedirectDetailEdit, ve.Redirect)
		} else {
			assert.NoError(t, err, st)
		}
	}

	assert.NoError(t, CheckGuide(StageShipped, &model.ShippingDetails{GuideFile: []byte("%PDF")}))
	assert.NoError(t, CheckGuide(StageDelivered, &model.ShippingDetails{IsLocalDelivery: true}))
	assert.Error(t, CheckGuide(StageDelivered, &model.ShippingDetails{Carrier: "DHL"}))
}

func TestTransition_AppendsHistory(t *testing.T) {
	o := &model.Order{}
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	Transition(o, StageProduction, at)
	Transition(o, StageReady, at.Add(time.Hour))

	assert.Equal(t, "ready", o.FulfillmentStatus)
	require.Len(t, o.FulfillmentHistory, 2)
	assert.Equal(t, "production", o.FulfillmentHistory[0].Status)
	require.NotNil(t, o.UpdatedAt)
	assert.Equal(t, at.Add(time.Hour), *o.UpdatedAt)
}

func TestCheckActive(t *testing.T) {
	assert.NoError(t, CheckActive(&model.Order{Status: model.OrderStatusActive}))
	err := CheckActive(&model.Order{Status: model.OrderStatusCancelled})
	assert.True(t, errors.Is(err, ErrOrderCancelled))
}

func TestShippingPatch_Apply(t *testing.T) {
	carrier := "Estafeta"
	local := true
	base := &model.ShippingDetails{Carrier: "DHL", GuideFile: []byte("x"), GuideFileName: "g.pdf"}

	out, err := (&ShippingPatch{Carrier: &carrier, IsLocalDelivery: &local}).Apply(base)
	require.NoError(t, err)
	assert.Equal(t, "Estafeta", out.Carrier)
	assert.True(t, out.IsLocalDelivery)
	assert.Equal(t, []byte("x"), out.GuideFile)
	assert.Equal(t, "DHL", base.Carrier, "base must not be modified")

	out, err = (&ShippingPatch{ClearGuide: true}).Apply(base)
	require.NoError(t, err)
	assert.False(t, out.HasGuide())
	assert.Empty(t, out.GuideFileName)

	_, err = (&ShippingPatch{ProductionImages: []string{"a", "b", "c", "d"}}).Apply(nil)
	assert.True(t, IsValidation(err))
}
