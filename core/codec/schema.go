package codec

// GameSchema is the interface of the plinko game contract.
const GameSchema = `[
	{
		"inputs": [],
		"name": "getGameState",
		"outputs": [
			{"name": "mainJackpot", "type": "uint256"},
			{"name": "miniJackpot", "type": "uint256"},
			{"name": "playCount", "type": "uint256"},
			{"name": "daoAccrued", "type": "uint256"},
			{"name": "devAccrued", "type": "uint256"},
			{"name": "entryPrice", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getRandomPoolSize",
		"outputs": [
			{"name": "size", "type": "uint256"},
			{"name": "index", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "play",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "player", "type": "address"},
			{"indexed": true, "name": "playId", "type": "uint256"},
			{"indexed": false, "name": "slot", "type": "uint256"},
			{"indexed": false, "name": "payout", "type": "uint256"},
			{"indexed": false, "name": "mainJackpotHit", "type": "bool"},
			{"indexed": false, "name": "miniJackpotHit", "type": "bool"}
		],
		"name": "Play",
		"type": "event"
	}
]`

// ERC20Schema is the subset of ERC-20 used by the client.
const ERC20Schema = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": true, "name": "spender", "type": "address"},
			{"indexed": false, "name": "value", "type": "uint256"}
		],
		"name": "Approval",
		"type": "event"
	}
]`

// Method and event names declared by the schemas.
const (
	MethodGetGameState      = "getGameState"
	MethodGetRandomPoolSize = "getRandomPoolSize"
	MethodPlay              = "play"
	EventPlay               = "Play"

	MethodBalanceOf = "balanceOf"
	MethodAllowance = "allowance"
	MethodApprove   = "approve"
	MethodDecimals  = "decimals"
	MethodSymbol    = "symbol"
	EventApproval   = "Approval"
)
