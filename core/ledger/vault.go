package ledger

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/util"
)

// ReceiveHook runs when an account is credited by the ledger, the way a
// contract account's fallback runs on an incoming transfer. Returning an error
// fails the transfer and with it the enclosing operation.
type ReceiveHook func(from util.EthereumAddress, amount *uint256.Int) error

// vault is the ledger's token accounting: balances of every account,
// including the escrow account.
type vault struct {
	balances map[util.EthereumAddress]uint256.Int
	hooks    map[util.EthereumAddress]ReceiveHook
}

func newVault() *vault {
	return &vault{
		balances: make(map[util.EthereumAddress]uint256.Int),
		hooks:    make(map[util.EthereumAddress]ReceiveHook),
	}
}

func (v *vault) balanceOf(a util.EthereumAddress) uint256.Int {
	return v.balances[a]
}

// mint credits an account outside any operation; used for genesis allocations.
func (v *vault) mint(to util.EthereumAddress, amount *uint256.Int) error {
	bal := v.balances[to]
	sum, overflow := new(uint256.Int).AddOverflow(&bal, amount)
	if overflow {
		return errors.WithStack(ErrAmountOverflow)
	}
	v.balances[to] = *sum
	return nil
}

func (v *vault) setBalance(undo *undoLog, a util.EthereumAddress, val uint256.Int) {
	prev, existed := v.balances[a]
	undo.push(func() {
		if existed {
			v.balances[a] = prev
		} else {
			delete(v.balances, a)
		}
	})
	v.balances[a] = val
}

// transfer moves amount from one account to another and runs the receiver's
// hook. Zero transfers are no-ops and do not run hooks.
func (v *vault) transfer(undo *undoLog, from, to util.EthereumAddress, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromBal := v.balances[from]
	if fromBal.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "account %s has %s, needs %s",
			from.Address(), util.FormatAmount(&fromBal), util.FormatAmount(amount))
	}
	if from == to {
		return nil
	}
	toBal := v.balances[to]
	credited, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return errors.WithStack(ErrAmountOverflow)
	}

	v.setBalance(undo, from, *new(uint256.Int).Sub(&fromBal, amount))
	v.setBalance(undo, to, *credited)

	if hook, ok := v.hooks[to]; ok {
		if err := hook(from, amount); err != nil {
			return errors.Wrapf(ErrTransferFailed, "receiver %s rejected %s: %v",
				to.Address(), util.FormatAmount(amount), err)
		}
	}
	return nil
}

// totalSupply sums every balance. Only used by invariant checks.
func (v *vault) totalSupply() uint256.Int {
	var sum uint256.Int
	for _, bal := range v.balances {
		b := bal
		sum.Add(&sum, &b)
	}
	return sum
}
