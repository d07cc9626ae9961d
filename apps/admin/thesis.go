package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// confirmRegistration records the examination office's confirmation of a registered thesis.
func (cli *commandLine) confirmRegistration(id string) error {
	th, err := cli.thesisSvc.ConfirmRegistration(context.Background(), id)
	if err != nil {
		return errors.Cause(err)
	}
	fmt.Printf("registration of %q confirmed at %s\n", th.Title, th.RegistrationConfirmedAt.Format(time.RFC3339))
	return nil
}

// remind sends the reminders the scheduler would send on its next run.
func (cli *commandLine) remind(olderThan time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, err := cli.thesisSvc.RemindPendingRequests(ctx, olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("%d reminder(s) sent\n", sent)
	return nil
}
