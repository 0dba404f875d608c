package ai

// operationsTable is the only table the assistant may query.
const operationsTable = "token_operations"

// operationsSchemaDescription describes the operation log for NL→SQL prompting.
//
// Keep it in sync with cache.OperationsTableDDL.
const operationsSchemaDescription = `
Database: solana
Table: token_operations

Columns:
  - id            String    -- Operation id (uuid)
  - signature     String    -- Transaction signature, empty when nothing was sent
  - timestamp     DateTime64(3) -- When the operation resolved (UTC)
  - kind          String    -- create_mint, mint_to, transfer or create_account
  - status        String    -- confirmed or failed
  - mint          String    -- Mint address
  - owner         String    -- Wallet that requested and paid for the operation
  - counterparty  String    -- Destination owner (mint_to) or recipient (transfer)
  - token_account String    -- Token account written by the operation
  - amount        String    -- Human readable amount as entered, e.g. "1.5"
  - base_units    UInt64    -- Amount in base units (amount * 10^decimals)
  - decimals      UInt8     -- Mint decimals
  - reason        String    -- Failure reason, empty on success
  - error_kind    String    -- invalid_request, signer_rejected, network_failure, in_flight, operation_disabled
  - cluster       String    -- devnet, testnet or mainnet-beta

Notes:
  - Use toFloat64(amount) or base_units / pow(10, decimals) for arithmetic on amounts.
  - Failed operations have status = 'failed'; filter them out when summing volume.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
`
