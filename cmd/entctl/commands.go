package main

import (
	"fmt"
	"strconv"

	"hq-entitlements/internal/model"
	"hq-entitlements/internal/redemption"

	"github.com/spf13/cobra"
)

const stampLayout = "2006-01-02 15:04"

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.entitlements(cmd.Context())
			if err != nil {
				return err
			}

			orders, err := svc.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			summary := model.Summarize(orders)
			if limit > 0 && len(orders) > limit {
				orders = orders[:limit]
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, orders)
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders")
				return nil
			}

			rows := make([][]string, 0, len(orders))
			for i := range orders {
				o := &orders[i]
				rows = append(rows, []string{
					o.OrderID,
					o.DownloadCode,
					o.BuyerEmail,
					fmt.Sprintf("%d/%d", len(o.Downloads), len(o.Items)),
					redemption.StateOf(o).String(),
					o.CreatedAt.Local().Format(stampLayout),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Order", "Code", "Email", "Downloaded", "State", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "%d orders, %d images, %.2f total\n",
				summary.TotalBuys, summary.TotalImages, summary.TotalSum)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many orders (0 for all)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show an order and its per-item download status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.entitlements(cmd.Context())
			if err != nil {
				return err
			}

			order, err := svc.GetOrderByCode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, model.NewDownloadView(order))
			}
			printOrder(cmd, order)
			return nil
		},
	}
}

func newMarkUsedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-used <code>",
		Short: "Revoke a download code regardless of downloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.entitlements(cmd.Context())
			if err != nil {
				return err
			}

			order, err := svc.MarkUsed(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := ctx.checkPersisted(); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, order)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s marked used\n", order.OrderID)
			return nil
		},
	}
}

func newRedeemCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <order-id> <image-id>",
		Short: "Record a download on behalf of a buyer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.entitlements(cmd.Context())
			if err != nil {
				return err
			}

			nowUsed, err := svc.RecordDownload(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("%s/%s: %w", args[0], args[1], err)
			}
			if err := ctx.checkPersisted(); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"orderId": args[0],
					"imageId": args[1],
					"nowUsed": nowUsed,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s (used: %s)\n", args[1], args[0], strconv.FormatBool(nowUsed))
			return nil
		},
	}
}

func printOrder(cmd *cobra.Command, o *model.Order) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Order:   %s\n", o.OrderID)
	fmt.Fprintf(out, "Code:    %s\n", o.DownloadCode)
	fmt.Fprintf(out, "Email:   %s\n", o.BuyerEmail)
	fmt.Fprintf(out, "Total:   %.2f (%s)\n", o.Total, o.PaymentMethod)
	fmt.Fprintf(out, "Created: %s\n", o.CreatedAt.Local().Format(stampLayout))
	fmt.Fprintf(out, "State:   %s\n", redemption.StateOf(o))

	downloaded := make(map[string]string, len(o.Downloads))
	for _, d := range o.Downloads {
		downloaded[d.ItemID] = d.DownloadedAt.Local().Format(stampLayout)
	}

	rows := make([][]string, 0, len(o.Items))
	for _, item := range o.Items {
		at, ok := downloaded[item.ImageID]
		if !ok {
			at = "-"
		}
		rows = append(rows, []string{item.ImageID, item.ActressName, at})
	}
	fmt.Fprintln(out, renderTable([]string{"Image", "Actress", "Downloaded"}, rows, nil))
}
