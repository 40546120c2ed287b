package sale

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// crowdsaleJSON covers the sale's read surface plus withdraw(). Purchase
// entry points vary between deployments and are encoded by the dispatcher.
const crowdsaleJSON = `[
  {"type":"function","name":"rate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"cap","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"weiRaised","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"token","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"receiptNFT","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"wallet","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"quote","stateMutability":"view","inputs":[{"name":"weiAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const erc20JSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const receiptJSON = `[
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ReceiptMinted","anonymous":false,"inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

// Parsed ABIs.
var (
	CrowdsaleABI = mustParse("crowdsale", crowdsaleJSON)
	ERC20ABI     = mustParse("erc20", erc20JSON)
	ReceiptABI   = mustParse("receipt", receiptJSON)
)

// ReceiptMintedSig is the canonical signature of the receipt mint event.
const ReceiptMintedSig = "ReceiptMinted(address,uint256)"

// ReceiptMintedTopic is topic[0] of every receipt mint log.
var ReceiptMintedTopic = EventTopic(ReceiptMintedSig)

// EventTopic returns the keccak-256 hash of an event signature.
func EventTopic(signature string) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return common.BytesToHash(h.Sum(nil))
}

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parsing %s ABI: %v", name, err))
	}
	return parsed
}
