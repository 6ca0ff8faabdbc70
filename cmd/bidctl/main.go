// Command bidctl is the SafeBid operator and bidder CLI.
//
// It covers the full client workflow: generate a keypair, create an
// auction, seal a bid through the service's development encrypt endpoint,
// sign and submit requests.
//
// # Usage
//
//	bidctl keygen
//	bidctl create --url=http://localhost:8080 --key=<hex> --item=painting --price=10 --start-in=1m
//	bidctl bid --url=http://localhost:8080 --key=<hex> --auction=0 --amount=42
//	bidctl check-end --url=http://localhost:8080 --auction=0
//	bidctl end --url=http://localhost:8080 --key=<hex> --auction=0
//	bidctl stop --url=http://localhost:8080 --key=<hex> --auction=0
//	bidctl purchase --url=http://localhost:8080 --key=<hex> --auction=0 --payment=10
//	bidctl show --url=http://localhost:8080 --auction=0
//
// Bidding requires the service to run with --dev-encrypt; production
// clients encrypt against their own capability endpoint instead.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/RobertxMiller/SafeBid/cmd/common"
	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/protocol"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "keygen":
		err = runKeygen()
	case "create":
		err = runCreate(args)
	case "bid":
		err = runBid(args)
	case "check-end":
		err = runCheckEnd(args)
	case "end":
		err = runEnd(args)
	case "stop":
		err = runStop(args)
	case "purchase":
		err = runPurchase(args)
	case "show":
		err = runShow(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bidctl <keygen|create|bid|check-end|end|stop|purchase|show> [flags]")
}

func runKeygen() error {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Printf("public key:  %s\n", pub.String())
	fmt.Printf("private key: %s\n", hex.EncodeToString(priv.Bytes()))
	return nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	keyHex := fs.String("key", "", "Seller private key (hex)")
	item := fs.String("item", "", "Item name")
	price := fs.Uint64("price", 0, "Start price (also the settlement price)")
	startIn := fs.Duration("start-in", time.Minute, "Delay before bidding opens")
	fs.Parse(args)

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	var resp protocol.CreateAuctionResponse
	err = postSigned(*url+"/auctions", key, &protocol.CreateAuctionRequest{
		ItemName:   *item,
		StartPrice: *price,
		StartTime:  time.Now().Add(*startIn).Unix(),
	}, &resp)
	if err != nil {
		return err
	}

	fmt.Printf("auction created: id=%d\n", resp.AuctionID)
	return nil
}

func runBid(args []string) error {
	fs := flag.NewFlagSet("bid", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	keyHex := fs.String("key", "", "Bidder private key (hex)")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	amount := fs.Uint("amount", 0, "Bid amount (sealed before submission)")
	fs.Parse(args)

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return err
	}

	// Seal the amount through the service's dev encrypt endpoint.
	var enc protocol.EncryptResponse
	err = postUnsigned(*url+"/fhe/encrypt", &protocol.EncryptRequest{
		Plain: uint32(*amount),
		Owner: pub.String(),
	}, &enc)
	if err != nil {
		return fmt.Errorf("sealing bid: %w", err)
	}

	var resp protocol.PlaceBidResponse
	err = postSigned(fmt.Sprintf("%s/auctions/%d/bids", *url, *auctionID), key, &protocol.PlaceBidRequest{
		AuctionID: *auctionID,
		Amount:    enc.Handle,
		Proof:     enc.Proof,
	}, &resp)
	if err != nil {
		return err
	}

	fmt.Printf("bid accepted: auction=%d index=%d\n", resp.AuctionID, resp.BidIndex)
	return nil
}

func runCheckEnd(args []string) error {
	fs := flag.NewFlagSet("check-end", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	fs.Parse(args)

	var resp protocol.CheckEndResponse
	err := postUnsigned(fmt.Sprintf("%s/auctions/%d/check-end", *url, *auctionID), nil, &resp)
	if err != nil {
		return err
	}

	if resp.Resolved {
		fmt.Println("auction resolved")
	} else {
		fmt.Println("auction not yet resolvable")
	}
	return nil
}

func runEnd(args []string) error {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	keyHex := fs.String("key", "", "Seller private key (hex)")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	fs.Parse(args)

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	err = postSigned(fmt.Sprintf("%s/auctions/%d/end", *url, *auctionID), key,
		&protocol.EndAuctionRequest{AuctionID: *auctionID}, nil)
	if err != nil {
		return err
	}
	fmt.Println("auction ended")
	return nil
}

func runStop(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	keyHex := fs.String("key", "", "Seller private key (hex)")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	fs.Parse(args)

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	err = postSigned(fmt.Sprintf("%s/auctions/%d/emergency-stop", *url, *auctionID), key,
		&protocol.EmergencyStopRequest{AuctionID: *auctionID}, nil)
	if err != nil {
		return err
	}
	fmt.Println("auction stopped")
	return nil
}

func runPurchase(args []string) error {
	fs := flag.NewFlagSet("purchase", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	keyHex := fs.String("key", "", "Winner private key (hex)")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	payment := fs.Uint64("payment", 0, "Payment amount")
	fs.Parse(args)

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	err = postSigned(fmt.Sprintf("%s/auctions/%d/purchase", *url, *auctionID), key,
		&protocol.CompletePurchaseRequest{AuctionID: *auctionID, Payment: *payment}, nil)
	if err != nil {
		return err
	}
	fmt.Println("purchase completed")
	return nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "Service URL")
	auctionID := fs.Uint64("auction", 0, "Auction id")
	fs.Parse(args)

	resp, err := http.Get(fmt.Sprintf("%s/auctions/%d", *url, *auctionID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, body)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return err
	}
	fmt.Println(pretty.String())
	return nil
}

func postSigned[T any](url string, key crypto.PrivateKey, obj *T, out any) error {
	signed, err := protocol.NewSigned(key, obj)
	if err != nil {
		return err
	}
	return postUnsigned(url, signed, out)
}

func postUnsigned(url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp protocol.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Code != "" {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
		}
		return fmt.Errorf("service returned %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
