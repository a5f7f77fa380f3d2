package protocol

import (
	"errors"
	"testing"

	"snake-arena/internal/game"
)

func TestCodecs(t *testing.T) {
	codecs := []Codec{JSONCodec{}, MsgpackCodec{}}

	for _, c := range codecs {
		t.Run(string(c.Encoding()), func(t *testing.T) {
			b, err := c.Encode(MsgInput, Input{A: 1.25, B: true})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			env, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if env.T != MsgInput {
				t.Fatalf("Expected type %q, got %q", MsgInput, env.T)
			}

			in, err := DecodePayload[Input](c, env)
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if in.A != 1.25 || !in.B {
				t.Errorf("Unexpected input %+v", in)
			}
		})
	}
}

func TestCodecRejectsBadFrames(t *testing.T) {
	for _, c := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		if _, err := c.Encode("", Input{}); !errors.Is(err, ErrEmptyType) {
			t.Errorf("%s: expected ErrEmptyType, got %v", c.Encoding(), err)
		}
		if _, err := c.Decode(nil); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("%s: expected ErrEmptyMessage, got %v", c.Encoding(), err)
		}
	}

	if _, err := (JSONCodec{}).Decode([]byte("{not json")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestPayloadlessMessage(t *testing.T) {
	c := JSONCodec{}
	b, err := c.Encode(MsgStart, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(b) != `{"t":"start"}` {
		t.Errorf("Unexpected frame %s", b)
	}

	env, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, err := DecodePayload[Input](c, env); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Expected ErrEmptyPayload, got %v", err)
	}
}

func TestCodecFor(t *testing.T) {
	if CodecFor("msgpack").Encoding() != EncodingMsgpack {
		t.Error("Expected msgpack codec")
	}
	if CodecFor("").Encoding() != EncodingJSON || CodecFor("xml").Encoding() != EncodingJSON {
		t.Error("Expected JSON fallback")
	}
}

func TestTickRoundTripsThroughMsgpack(t *testing.T) {
	e := game.NewEngine(game.EngineConfig{WorldSize: game.WorldSmall, Seed: 3})
	e.SpawnSnake("a", "Alice", "dots", "#112233")
	res := e.Update()

	c := MsgpackCodec{}
	b, err := c.Encode(MsgTick, Tick{
		Tick:        res.Tick,
		State:       e.FullState(),
		Leaderboard: e.Leaderboard(),
		Events:      EventViews(res.Tick, res.Events),
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tick, err := DecodePayload[Tick](c, env)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if tick.Tick != 1 || tick.State.Snakes["a"].Name != "Alice" || tick.Leaderboard.AliveCount != 1 {
		t.Errorf("Unexpected tick %+v", tick)
	}
}

func TestEventViews(t *testing.T) {
	events := []game.Event{
		game.EatEvent{PlayerID: "a", FoodType: game.FoodBonus, Value: 5, Pos: game.Point{X: 1.26, Y: 2}},
		game.KillEvent{KillerID: "b", KillerName: "Bob", VictimID: "a", VictimName: "Al"},
		game.DeathEvent{PlayerID: "a", Name: "Al", Cause: game.CauseBody, KilledBy: "b", Score: 9, Length: 12},
		game.PowerUpPickupEvent{PlayerID: "b", PowerUpID: "pu-1", Type: game.PowerUpGhost},
		game.PowerUpExpiredEvent{PlayerID: "b", Type: game.PowerUpSpeed},
		game.PowerUpDespawnEvent{PowerUpID: "pu-2", Type: game.PowerUpShield},
	}
	wantTypes := []string{"eat", "kill", "death", "powerup_pickup", "powerup_expired", "powerup_despawn"}

	views := EventViews(7, events)
	if len(views) != len(events) {
		t.Fatalf("Expected %d views, got %d", len(events), len(views))
	}
	for i, v := range views {
		if v.Type != wantTypes[i] || v.Tick != 7 {
			t.Errorf("View %d: got type %q tick %d", i, v.Type, v.Tick)
		}
	}
	if views[0].X != 1.3 || views[0].FoodType != "bonus" {
		t.Errorf("Unexpected eat view %+v", views[0])
	}
	if views[1].KillerID != "b" || views[2].KilledBy != "b" || views[2].Cause != "body" {
		t.Errorf("Unexpected kill/death views %+v %+v", views[1], views[2])
	}
	if views[5].PowerUpID != "pu-2" || views[5].PowerUpType != "shield" {
		t.Errorf("Unexpected despawn view %+v", views[5])
	}

	if empty := EventViews(1, nil); empty == nil || len(empty) != 0 {
		t.Error("Expected non-nil empty slice")
	}
}
