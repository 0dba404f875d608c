package ai

const sqlSystemPrompt = `You translate questions about a wallet's SPL token operations into one ClickHouse SELECT query.

Use ONLY this table:
%s

Rules:
- Reply with the SQL only. No explanation, no comments.
- Use timestamp for time filtering.
- Unless the question is about failures, only count rows with status = 'confirmed'.
- Amounts: sum base_units for exact totals, the amount column is a display string.
- For "top" or "biggest" questions use ORDER BY ... DESC and LIMIT.
- Never modify data: no INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE.`

const summarySystemPrompt = `You review the history of SPL token operations (mint creation, minting, transfers) made from one Solana wallet.

- If the result set is empty, say that no operations matched.
- Otherwise answer concisely with bullet points and short sentences.
- Include key numbers (amounts, counts) and shorten addresses to their first 8 characters.
- Do not restate the raw JSON.`

const summaryUserPrompt = `Question:
%s

SQL that was executed:
%s

Rows (JSON array, possibly empty, at most %d rows):
%s`
