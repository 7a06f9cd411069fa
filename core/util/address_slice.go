package util

// EthereumAddressesToStrings renders every address in its 0x form, in order.
func EthereumAddressesToStrings(addrs []EthereumAddress) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address())
	}
	return out
}

// EthereumAddressesFromStrings parses every entry, failing on the first invalid one.
func EthereumAddressesFromStrings(strs []string) ([]EthereumAddress, error) {
	addrs := make([]EthereumAddress, len(strs))
	for i, s := range strs {
		a, err := NewEthereumAddressFromString(s)
		if err != nil {
			return nil, err
		}
		addrs[i] = a
	}
	return addrs, nil
}
