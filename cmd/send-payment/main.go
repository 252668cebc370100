package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"confio-payclient/internal/clients"
	"confio-payclient/internal/config"
	"confio-payclient/internal/models"
	"confio-payclient/internal/services"
	"confio-payclient/internal/wallet"

	"github.com/sirupsen/logrus"
)

// send-payment drives one sponsored payment through the full
// prepare → sign → submit flow using the development signer.
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	amount := flag.String("amount", "", "payment amount, e.g. 10.00")
	asset := flag.String("asset", "CUSD", "asset type: CUSD, CONFIO or USDC")
	toUser := flag.String("to-user", "", "recipient user id")
	toBusiness := flag.String("to-business", "", "recipient business id")
	toPhone := flag.String("to-phone", "", "recipient phone number")
	toAddress := flag.String("to-address", "", "recipient raw address")
	note := flag.String("note", "", "optional payment note")
	invoice := flag.String("invoice", "", "invoice id for merchant charge flows")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	token, err := cfg.SessionToken()
	if err != nil {
		logger.Fatalf("❌ No session token: %v", err)
	}

	identity, err := wallet.IdentityFromToken(token)
	if err != nil {
		logger.Fatalf("❌ Failed to read wallet identity from token: %v", err)
	}
	logger.WithField("wallet", identity.Fingerprint()).Info("🔐 Wallet identity loaded")

	intent := &models.PaymentIntent{
		Amount:              *amount,
		AssetType:           models.AssetType(*asset),
		RecipientUserID:     *toUser,
		RecipientBusinessID: *toBusiness,
		RecipientPhone:      *toPhone,
		RecipientAddress:    *toAddress,
		Note:                *note,
		InvoiceID:           *invoice,
	}
	if err := intent.Validate(); err != nil {
		logger.Fatalf("❌ Invalid payment: %v", err)
	}

	session := clients.NewSessionClient(cfg.Server.WebSocketURL, token, logger)
	defer session.Close()
	graphql := clients.NewGraphQLClient(cfg.Server.GraphQLURL, token, logger)

	signer := wallet.NewDevSigner(identity)

	preparation := services.NewPreparationService(session, cfg.PrepareTimeout(), logger)
	signing := services.NewSigningService(signer, logger)
	submission := services.NewSubmissionService(
		&services.ChannelTransport{Channel: session},
		&services.GraphQLTransport{Client: graphql},
		cfg.SubmitTimeout(),
		logger,
	)

	coordinator := services.NewPaymentCoordinator(preparation, signing, submission, graphql, logger)
	coordinator.RecoveryAttempts = cfg.Recovery.MaxAttempts
	coordinator.RecoveryBackoff = cfg.RecoveryBackoff()
	coordinator.OnStateChange = func(state models.PaymentState) {
		fmt.Printf("  → %s\n", state)
	}

	result, err := coordinator.Execute(context.Background(), intent)
	if err != nil {
		logger.Errorf("❌ Payment failed: %v", err)
		fmt.Println("The payment could not be confirmed. Check your transaction history before retrying.")
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Payment confirmed")
	fmt.Println("============================================================")
	fmt.Printf("  Payment ID:      %s\n", result.PaymentID)
	fmt.Printf("  Transaction ID:  %s\n", result.TransactionID)
	fmt.Printf("  Confirmed round: %d\n", result.ConfirmedRound)
}
