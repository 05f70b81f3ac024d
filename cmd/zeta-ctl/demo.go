package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/envelope"
)

var demoAddr string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the create/register/transfer/redeem/validate walkthrough against a running server",
	Long: `demo drives the scenario spec.md §8's S1 describes end to end against
a running zeta-server: it creates an event, registers a ticket for a
holder, transfers it to a second holder, redeems the new ticket, and
confirms the old ticket now fails to load as superseded.`,
	Example: `  zeta-ctl demo --addr http://localhost:8443`,
	RunE:    runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoAddr, "addr", "http://localhost:8443", "base URL of a running zeta-server")
	rootCmd.AddCommand(demoCmd)
}

// demoClient is a minimal signed HTTP client: every principal in the
// walkthrough (owner, holder A, holder B) is its own keypair, since
// spec.md's permission model is entirely about which key signed which
// envelope.
type demoClient struct {
	addr   string
	signer *cryptoutil.Signer
}

func newDemoPrincipal(bits int) (*demoClient, error) {
	signer, err := cryptoutil.GenerateSigner(bits)
	if err != nil {
		return nil, err
	}
	return &demoClient{addr: demoAddr, signer: signer}, nil
}

func post[Req, Resp any](c *demoClient, path string, req Req) (Resp, error) {
	var zero Resp

	auth, err := envelope.Load(req, c.signer)
	if err != nil {
		return zero, fmt.Errorf("sign request: %w", err)
	}
	body, err := json.Marshal(auth)
	if err != nil {
		return zero, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := http.Post(c.addr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("post %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	var respAuth envelope.Auth[json.RawMessage]
	if err := json.NewDecoder(httpResp.Body).Decode(&respAuth); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		var errBody struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(respAuth.Data.Content, &errBody)
		return zero, fmt.Errorf("%s: %d %s", path, httpResp.StatusCode, errBody.Detail)
	}

	var out Resp
	if err := json.Unmarshal(respAuth.Data.Content, &out); err != nil {
		return zero, fmt.Errorf("unmarshal content: %w", err)
	}
	return out, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	owner, err := newDemoPrincipal(2048)
	if err != nil {
		return err
	}
	holderA, err := newDemoPrincipal(2048)
	if err != nil {
		return err
	}
	holderB, err := newDemoPrincipal(2048)
	if err != nil {
		return err
	}

	fmt.Println("creating event...")
	created, err := post[createReq, createResp](owner, "/create", createReq{
		Event: createEventInput{
			Name: "ZETA Demo Night", Description: "scripted walkthrough",
			Tickets: 3, TransferLimit: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	fmt.Printf("  event_id = %s\n", created.EventID)

	fmt.Println("registering ticket for holder A...")
	registered, err := post[registerReq, registerResp](holderA, "/register", registerReq{EventID: created.EventID})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	oldTicket := registered.Ticket
	fmt.Println("  issued ticket t0")

	fmt.Println("transferring t0 from holder A to holder B...")
	holderBPub, err := holderB.signer.PublicPEM()
	if err != nil {
		return err
	}
	transferBlock, err := envelope.Load(transferContent{
		Ticket: oldTicket, TransferPublicKey: publicKeyOf(holderB),
	}, holderA.signer)
	if err != nil {
		return fmt.Errorf("sign transfer block: %w", err)
	}
	transferred, err := post[transferReq, registerResp](holderB, "/transfer", transferReq{
		EventID: created.EventID, Transfer: transferBlock,
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	newTicket := transferred.Ticket
	fmt.Printf("  issued ticket t1, held by holder B (public key %s...)\n", holderBPub[:40])

	fmt.Println("redeeming t1 as holder B...")
	if _, err := post[redeemReq, successResp](holderB, "/redeem", redeemReq{EventID: created.EventID, Ticket: newTicket}); err != nil {
		return fmt.Errorf("redeem: %w", err)
	}
	fmt.Println("  redeemed")

	fmt.Println("validating t1 as owner, with stamp=true...")
	validated, err := post[validateReq, validateResp](owner, "/validate", validateReq{
		EventID: created.EventID, Ticket: newTicket, CheckPublicKey: publicKeyOf(holderB), Stamp: true,
	})
	if err != nil {
		return fmt.Errorf("validate/stamp: %w", err)
	}
	stamped := "nil"
	if validated.Stamped != nil {
		stamped = fmt.Sprintf("%v", *validated.Stamped)
	}
	fmt.Printf("  redeemed=%v stamped=%s\n", validated.Redeemed, stamped)

	fmt.Println("confirming the old ticket t0 is now superseded...")
	_, err = post[redeemReq, successResp](holderA, "/redeem", redeemReq{EventID: created.EventID, Ticket: oldTicket})
	if err == nil {
		return fmt.Errorf("expected redeeming the superseded ticket to fail, it succeeded")
	}
	fmt.Printf("  got expected error: %v\n", err)

	fmt.Println("demo complete")
	return nil
}

func publicKeyOf(c *demoClient) string {
	pub, _ := c.signer.PublicPEM()
	return pub
}

// Wire shapes duplicated from internal/server's unexported request/response
// types, since the demo client talks to the server purely over HTTP and
// has no business importing internal/server's handler package.

type createEventInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Tickets       int    `json:"tickets"`
	Restricted    bool   `json:"restricted"`
	TransferLimit int    `json:"transfer_limit"`
	EnableFlags   bool   `json:"enable_flags"`
}

type createReq struct {
	Event createEventInput `json:"event"`
}

type createResp struct {
	EventID string `json:"event_id"`
}

type registerReq struct {
	EventID string `json:"event_id"`
}

type registerResp struct {
	Ticket string `json:"ticket"`
}

type transferContent struct {
	Ticket            string `json:"ticket"`
	TransferPublicKey string `json:"transfer_public_key"`
}

type transferReq struct {
	EventID  string                          `json:"event_id"`
	Transfer envelope.Auth[transferContent] `json:"transfer"`
}

type redeemReq struct {
	EventID string `json:"event_id"`
	Ticket  string `json:"ticket"`
}

type successResp struct {
	Success bool `json:"success"`
}

type validateReq struct {
	EventID        string `json:"event_id"`
	Ticket         string `json:"ticket"`
	CheckPublicKey string `json:"check_public_key"`
	Stamp          bool   `json:"stamp"`
}

type validateResp struct {
	TicketNumber  int     `json:"ticket_number"`
	Redeemed      bool    `json:"redeemed"`
	Stamped       *bool   `json:"stamped"`
	Version       int     `json:"version"`
	TransferLimit int     `json:"transfer_limit"`
	Metadata      *string `json:"metadata"`
}
