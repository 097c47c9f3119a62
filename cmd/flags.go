package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/streambinder/youterm/entity"
)

var (
	_ pflag.Value = (*strategyValue)(nil)
	_ pflag.Value = (*modeValue)(nil)
)

type strategyValue entity.Strategy

func (value *strategyValue) String() string {
	return string(*value)
}

func (value *strategyValue) Set(raw string) error {
	strategy, err := entity.ParseStrategy(raw)
	if err != nil {
		return err
	}
	*value = strategyValue(strategy)
	return nil
}

func (value *strategyValue) Type() string {
	return "strategy"
}

type modeValue entity.ShuffleMode

func (value *modeValue) String() string {
	return string(*value)
}

func (value *modeValue) Set(raw string) error {
	mode, err := entity.ParseShuffleMode(raw)
	if err != nil {
		return err
	}
	*value = modeValue(mode)
	return nil
}

func (value *modeValue) Type() string {
	return "mode"
}

func strategyFlag(cmd *cobra.Command, fallback entity.Strategy) {
	value := strategyValue(fallback)
	cmd.Flags().VarP(&value, "strategy", "s", "Discovery strategy ("+strings.Join(strategyNames(), ", ")+")")
}

func getStrategy(cmd *cobra.Command) entity.Strategy {
	if flag := cmd.Flags().Lookup("strategy"); flag != nil {
		return entity.Strategy(flag.Value.String())
	}
	return entity.Mixed
}

func strategyNames() []string {
	names := make([]string, len(entity.Strategies))
	for i, strategy := range entity.Strategies {
		names[i] = string(strategy)
	}
	return names
}

func query(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
