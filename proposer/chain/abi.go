package chain

// Minimal ABI fragments for the tracker contracts and the ERC-20 decimals
// read. The full contracts live outside this repository.
const (
	bundleTrackerABI = `[{"inputs":[{"internalType":"string","name":"cid","type":"string"}],"name":"propose","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	vaultTrackerABI = `[{"inputs":[],"name":"nextVaultId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"address","name":"controller","type":"address"}],"name":"createVault","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	erc20ABI = `[{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`
)
