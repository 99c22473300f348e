package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flatscout/flatscout/internal/model"
)

// NewAddressCmd creates the address command and its subcommands.
func NewAddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "address",
		Aliases: []string{"addresses"},
		Short:   "Manage the address book",
		Long: `Address manages the addresses a search looks for.

A search takes a snapshot of the address book when it starts and searches
the cities of all addresses.

Examples:
  flatscout address add --street Hauptstraße --number 12 --postal 10115 --city Berlin
  flatscout address list
  flatscout address update 3 --number 12a
  flatscout address delete 3`,
	}

	cmd.AddCommand(newAddressListCmd())
	cmd.AddCommand(newAddressAddCmd())
	cmd.AddCommand(newAddressUpdateCmd())
	cmd.AddCommand(newAddressDeleteCmd())
	return cmd
}

func addAddressFlags(cmd *cobra.Command) {
	cmd.Flags().String("street", "", "Street name")
	cmd.Flags().String("number", "", "House number, e.g. 12, 12a or 12-14")
	cmd.Flags().String("postal", "", "Postal code")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().String("notes", "", "Free text notes")
}

// applyAddressFlags copies the flags set on the command line into a.
func applyAddressFlags(cmd *cobra.Command, a *model.Address) error {
	fields := []struct {
		flag string
		dst  *string
	}{
		{"street", &a.Street},
		{"number", &a.HouseNumber},
		{"postal", &a.PostalCode},
		{"city", &a.City},
		{"notes", &a.Notes},
	}
	for _, f := range fields {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		v, err := cmd.Flags().GetString(f.flag)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func parseAddressID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid address id %q", s)
	}
	return id, nil
}

func newAddressListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the address book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				addrs, err := a.store.ListAll(ctx)
				if err != nil {
					return err
				}
				printAddressList(cmd.OutOrStdout(), addrs)
				return nil
			})
		},
	}
}

func printAddressList(w io.Writer, addrs []model.Address) {
	if len(addrs) == 0 {
		fmt.Fprintln(w, "The address book is empty. Add one with 'flatscout address add'.")
		return
	}
	fmt.Fprintf(w, "Addresses (%d):\n\n", len(addrs))
	fmt.Fprintf(w, "  %-5s  %-45s  %s\n", "ID", "Address", "Notes")
	for _, a := range addrs {
		fmt.Fprintf(w, "  %-5d  %-45s  %s\n", a.ID, a.Display(), a.Notes)
	}
}

func newAddressAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var addr model.Address
			if err := applyAddressFlags(cmd, &addr); err != nil {
				return err
			}
			if err := addr.Validate(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				stored, err := a.store.AddAddress(ctx, addr)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added address %d: %s\n", stored.ID, stored.Display())
				return nil
			})
		},
	}
	addAddressFlags(cmd)
	return cmd
}

func newAddressUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an address",
		Long:  `Update changes the fields given as flags and keeps the others.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAddressID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				addr, err := a.store.GetAddress(ctx, id)
				if err != nil {
					return err
				}
				if err := applyAddressFlags(cmd, &addr); err != nil {
					return err
				}
				if err := a.store.UpdateAddress(ctx, addr); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated address %d: %s\n", addr.ID, addr.Display())
				return nil
			})
		},
	}
	addAddressFlags(cmd)
	return cmd
}

func newAddressDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAddressID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.DeleteAddress(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted address %d\n", id)
				return nil
			})
		},
	}
}
