package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/domain/triage"
	"github.com/medicenter/medicenter/internal/platform/apperr"
)

func triageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Walk a patient through the decision tree in the terminal and queue the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			name, _ := cmd.Flags().GetString("name")
			coverage, _ := cmd.Flags().GetString("coverage")
			facilityID, _ := cmd.Flags().GetString("facility")
			symptoms, _ := cmd.Flags().GetStringSlice("symptoms")

			if patientID == "" && name == "" {
				return fmt.Errorf("either --patient or --name is required")
			}
			return runTriage(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), triageInput{
				patientID:  patientID,
				name:       name,
				coverage:   coverage,
				facilityID: facilityID,
				symptoms:   symptoms,
			})
		},
	}
	cmd.Flags().String("patient", "", "Existing patient id")
	cmd.Flags().String("name", "", "Register a new patient with this name")
	cmd.Flags().String("coverage", "none", "Coverage for a new patient: none, basic or full")
	cmd.Flags().String("facility", "H001", "Facility to queue the patient at")
	cmd.Flags().StringSlice("symptoms", nil, "Reported symptoms, comma separated")
	return cmd
}

type triageInput struct {
	patientID  string
	name       string
	coverage   string
	facilityID string
	symptoms   []string
}

func runTriage(ctx context.Context, in io.Reader, out io.Writer, input triageInput) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logger.Level(zerolog.WarnLevel)

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()
	d, _, err := buildDispatcher(ctx, cfg, logger, st.store, nil, nil)
	if err != nil {
		return err
	}

	patientID := input.patientID
	if patientID == "" {
		cov, err := identity.ParseCoverage(input.coverage)
		if err != nil {
			return err
		}
		p := &identity.Patient{Account: identity.Account{Name: input.name}, Coverage: cov}
		if cov != identity.CoverageNone {
			p.InsuranceNumber = "PENDING"
		}
		p, err = d.RegisterPatient(ctx, p)
		if err != nil && !errors.Is(err, apperr.ErrPersistence) {
			return err
		}
		patientID = p.ID
		fmt.Fprintf(out, "Registered patient %s\n", patientID)
	}

	scanner := bufio.NewScanner(in)
	if len(input.symptoms) == 0 {
		fmt.Fprintf(out, "Symptoms (%s):\n> ", strings.Join(triage.Catalogue, ", "))
		if !scanner.Scan() {
			return fmt.Errorf("no symptoms given")
		}
		input.symptoms = strings.Split(scanner.Text(), ",")
	}

	session, err := d.BeginTriage(ctx, patientID, input.facilityID, input.symptoms)
	if err != nil {
		return err
	}
	return walkSession(ctx, scanner, out, session)
}

func walkSession(ctx context.Context, scanner *bufio.Scanner, out io.Writer, session *triage.Session) error {
	for _, step := range session.Path() {
		if step.Auto {
			color.New(color.FgCyan).Fprintf(out, "%s %s (from reported symptoms)\n", step.Question, step.Answer)
		}
	}

	for !session.Complete() {
		state := session.State()
		fmt.Fprintf(out, "%s [si/no] ", state.Question)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return fmt.Errorf("input ended before a diagnosis was reached")
		}
		answer, err := triage.ParseAnswer(scanner.Text())
		if err != nil {
			color.New(color.FgYellow).Fprintln(out, "Please answer si or no.")
			continue
		}
		before := len(session.Path())
		if _, err := session.Submit(answer); err != nil {
			return err
		}
		for _, step := range session.Path()[before+1:] {
			color.New(color.FgCyan).Fprintf(out, "%s %s (from reported symptoms)\n", step.Question, step.Answer)
		}
	}

	state, err := session.Finalize(ctx)
	if err != nil && !errors.Is(err, apperr.ErrPersistence) {
		return err
	}
	severityColor(state.Result.Severity).Fprintf(out, "\n%s\n", state.Result.Diagnosis)
	fmt.Fprintf(out, "Record %s queued at %s, position %d.\n", state.RecordID, state.FacilityID, state.QueuePosition)
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "warning: %v\n", err)
	}
	return nil
}
