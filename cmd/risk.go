package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrisense/maizeguard/internal/risk"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Disease risk utilities",
}

var riskAssessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess disease risk from weather readings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		temp := optionalFloatFlag(cmd, "temp")
		humidity := optionalFloatFlag(cmd, "humidity")
		precip := optionalFloatFlag(cmd, "precip")

		level := risk.Assess(temp, humidity, precip)
		fmt.Printf("Risk: %s (temp=%s humidity=%s precip=%s)\n",
			level, fmtFloat(temp), fmtFloat(humidity), fmtFloat(precip))
		return nil
	},
}

var riskConditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "Show the weather bands behind the risk scoring",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, c := range risk.Conditions() {
			fmt.Printf("%s: temperature %s, humidity %s (%s)\n",
				c.Name, c.Temperature, c.Humidity, c.Notes)
		}
		return nil
	},
}

func optionalFloatFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

func init() {
	riskAssessCmd.Flags().Float64("temp", 0, "temperature in Celsius")
	riskAssessCmd.Flags().Float64("humidity", 0, "relative humidity percent")
	riskAssessCmd.Flags().Float64("precip", 0, "precipitation in mm")

	riskCmd.AddCommand(riskAssessCmd)
	riskCmd.AddCommand(riskConditionsCmd)
	rootCmd.AddCommand(riskCmd)
}
