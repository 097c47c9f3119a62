package entity

import (
	"fmt"
	"strings"
)

type Strategy string

const (
	Direct  Strategy = "direct"
	Artist  Strategy = "artist"
	Related Strategy = "related"
	Genre   Strategy = "genre"
	Mixed   Strategy = "mixed"
)

var Strategies = []Strategy{Direct, Artist, Related, Genre, Mixed}

func ParseStrategy(value string) (Strategy, error) {
	for _, strategy := range Strategies {
		if strings.EqualFold(value, string(strategy)) {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q (one of %s)", value, joinStrategies())
}

func joinStrategies() string {
	names := make([]string, 0, len(Strategies))
	for _, strategy := range Strategies {
		names = append(names, string(strategy))
	}
	return strings.Join(names, ", ")
}

type ShuffleMode string

const (
	Sequential ShuffleMode = "sequential"
	Smart      ShuffleMode = "smart"
	Random     ShuffleMode = "random"
)

var ShuffleModes = []ShuffleMode{Sequential, Smart, Random}

func ParseShuffleMode(value string) (ShuffleMode, error) {
	for _, mode := range ShuffleModes {
		if strings.EqualFold(value, string(mode)) {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown shuffle mode %q (one of sequential, smart, random)", value)
}
