package launcher

import (
	"encoding/json"
	"fmt"
)

type GameStatus string

const (
	GameIdle        GameStatus = "Idle"
	GameDownloading GameStatus = "Downloading"
	GamePlaying     GameStatus = "Playing"
)

func (s GameStatus) String() string {
	return string(s)
}

// IsRunning is the only boolean view of the game state; there is no separate
// running flag anywhere.
func (s GameStatus) IsRunning() bool {
	return s != GameIdle
}

func (s GameStatus) Valid() bool {
	switch s {
	case GameIdle, GameDownloading, GamePlaying:
		return true
	}
	return false
}

func (s *GameStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := GameStatus(str)
	if !status.Valid() {
		return fmt.Errorf("unknown game status: %q", str)
	}
	*s = status
	return nil
}

type Progress struct {
	Status  string  `json:"status"`
	Current float64 `json:"current"`
	Total   float64 `json:"total"`
}

func (p *Progress) Ratio() float64 {
	if p == nil || p.Total <= 0 {
		return 0
	}
	ratio := p.Current / p.Total
	if ratio > 1 {
		return 1
	}
	return ratio
}
