/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"investment-ledger-go/internal/accrual"
	"investment-ledger-go/internal/api"
	"investment-ledger-go/internal/common"
	"investment-ledger-go/internal/config"
	"investment-ledger-go/internal/formance"
	"investment-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usage = `usage: admin <command> [flags]

commands:
  pending            list pending transactions
  status             move a transaction to a new status
  adjust-balance     apply a signed delta to a user's balance
  adjust-earnings    apply a signed delta to a user's earnings
  set-withdrawable   set the releasable part of a user's earnings
  pause              stop accrual credits for a user
  resume             resume accrual credits for a user
  accrue             run one accrual tick now
  mirror             export new ledger entries to the Formance ledger`

type adminCommand struct {
	services *common.Services
	actor    models.Actor
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	return amount, nil
}

func (c *adminCommand) resolveUser(ctx context.Context, user string) string {
	userId, err := common.ResolveAccountId(ctx, c.services.DbService, user)
	if err != nil {
		zap.L().Fatal("Unknown user", zap.String("user", user), zap.Error(err))
	}
	return userId
}

func (c *adminCommand) pending(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	txType := fs.String("type", "", "deposit or withdrawal (optional)")
	_ = fs.Parse(args)

	records, err := c.services.Ledger.ListTransactions(ctx, c.actor, models.TransactionFilter{
		Type:   models.TransactionType(*txType),
		Status: models.StatusPending,
		Limit:  100,
	})
	if err != nil {
		return err
	}

	common.PrintHeader(fmt.Sprintf("PENDING TRANSACTIONS (%d)", len(records)), common.DefaultWidth)
	for i, r := range records {
		detail := r.PlanId
		if r.Type == models.TransactionTypeWithdrawal {
			detail = string(r.Source)
		}
		fmt.Printf("%s %s  %-10s %12s  %-22s user %s  %s\n",
			common.BoxPrefix(i == len(records)-1),
			r.Id, r.Type, common.FormatMoney(r.Amount), detail,
			common.ShortId(r.UserId), common.FormatTime(r.CreatedAt))
	}
	return nil
}

func (c *adminCommand) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	txId := fs.String("tx", "", "Transaction id (required)")
	to := fs.String("to", "", "confirmed, not_received, completed or failed (required)")
	note := fs.String("note", "", "Note stored with the status change")
	_ = fs.Parse(args)

	if *txId == "" || *to == "" {
		return fmt.Errorf("--tx and --to are required")
	}

	record, err := c.services.Ledger.UpdateTransactionStatus(ctx, c.actor, *txId, models.StatusUpdateRequest{
		Status: models.TransactionStatus(*to),
		Note:   *note,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Transaction %s is now %s\n", record.Id, record.Status)
	if record.InvestmentId != "" {
		fmt.Printf("   Investment opened: %s\n", record.InvestmentId)
	}
	return nil
}

func (c *adminCommand) adjust(ctx context.Context, name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	user := fs.String("user", "", "User id or email (required)")
	amountFlag := fs.String("amount", "", "Signed delta, or the target for set-withdrawable (required)")
	reason := fs.String("reason", "", "Reason recorded in the audit trail (required)")
	opId := fs.String("op", "", "Operation id; reuse it to retry safely (default: random)")
	_ = fs.Parse(args)

	amount, err := parseAmount(*amountFlag)
	if err != nil {
		return err
	}
	if *opId == "" {
		*opId = name + ":" + uuid.New().String()
	}

	userId := c.resolveUser(ctx, *user)
	req := models.AdjustmentRequest{Amount: amount, Reason: *reason, OperationId: *opId}

	var record *models.AdjustmentRecord
	switch name {
	case "adjust-balance":
		record, err = c.services.Ledger.AdjustBalance(ctx, c.actor, userId, req)
	case "adjust-earnings":
		record, err = c.services.Ledger.AdjustEarnings(ctx, c.actor, userId, req)
	default:
		record, err = c.services.Ledger.SetWithdrawableEarnings(ctx, c.actor, userId, req)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ %s adjusted by %s (operation %s)\n", record.Field, common.FormatMoney(record.Delta), record.OperationId)
	return c.printSummary(ctx, userId)
}

func (c *adminCommand) setPaused(ctx context.Context, name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	user := fs.String("user", "", "User id or email (required)")
	_ = fs.Parse(args)

	userId := c.resolveUser(ctx, *user)
	var err error
	if name == "pause" {
		_, err = c.services.Ledger.PauseEarnings(ctx, c.actor, userId)
	} else {
		_, err = c.services.Ledger.ResumeEarnings(ctx, c.actor, userId)
	}
	if err != nil {
		return err
	}
	return c.printSummary(ctx, userId)
}

func (c *adminCommand) accrue(ctx context.Context, cfg *models.Config) error {
	engine := accrual.NewEngine(c.services.DbService, cfg.Accrual)
	result, err := engine.Tick(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("\nAccrual tick: %d investments, %d cycles credited (%s), %d forfeited, %d matured, %d failed\n",
		result.Processed, result.Cycles, common.FormatMoney(result.Credited), result.Forfeited, result.Matured, result.Failed)
	return nil
}

func (c *adminCommand) mirror(ctx context.Context, cfg *models.Config) error {
	if !cfg.Formance.Enabled() {
		return fmt.Errorf("FORMANCE_STACK_URL is not set")
	}
	mirror, err := formance.NewService(ctx, cfg.Formance)
	if err != nil {
		return err
	}
	stats, err := formance.NewExporter(mirror, c.services.DbService).Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nMirror export to %s: %d users, %d posted, %d already present, %d failed\n\n",
		cfg.Formance.LedgerName, stats.Users, stats.Posted, stats.Existing, stats.Failed)
	return nil
}

func (c *adminCommand) printSummary(ctx context.Context, userId string) error {
	summary, err := c.services.Ledger.GetDashboardSummary(ctx, c.actor, userId)
	if err != nil {
		return err
	}
	fmt.Printf("   Balance: %s  Earnings: %s  Withdrawable: %s  Paused: %t\n\n",
		common.FormatMoney(summary.Balance),
		common.FormatMoney(summary.Earnings),
		common.FormatMoney(summary.WithdrawableEarnings),
		summary.EarningsPaused)
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	actorId := strings.TrimSpace(os.Getenv("ADMIN_ID"))
	if actorId == "" {
		actorId = "cli-admin"
	}
	c := &adminCommand{
		services: services,
		actor:    models.Actor{Id: actorId, Role: models.RoleAdmin},
	}

	switch command {
	case "pending":
		err = c.pending(ctx, args)
	case "status":
		err = c.status(ctx, args)
	case "adjust-balance", "adjust-earnings", "set-withdrawable":
		err = c.adjust(ctx, command, args)
	case "pause", "resume":
		err = c.setPaused(ctx, command, args)
	case "accrue":
		err = c.accrue(ctx, cfg)
	case "mirror":
		err = c.mirror(ctx, cfg)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Printf("\n✗ %s failed [%s]: %v\n\n", command, api.CodeOf(err), err)
		zap.L().Error("Admin command failed",
			zap.String("command", command),
			zap.String("code", string(api.CodeOf(err))),
			zap.Error(err))
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
