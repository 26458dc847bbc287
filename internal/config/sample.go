package config

// Sample is a commented config documenting every option with its default.
const Sample = `# postai configuration (YAML)
# All fields are optional. POSTAI_* environment variables and command-line
# flags override values set here. A .env file in the working directory is
# loaded first.

llm:
  # Any OpenAI-compatible chat completion endpoint. Defaults to local Ollama.
  base_url: http://localhost:11434/v1
  model: gemma3:12b
  # api_key: sk-...            # or OPENAI_API_KEY / POSTAI_LLM_API_KEY
  temperature: 0
  timeout_seconds: 60
  requests_per_second: 0       # 0 disables client-side rate limiting
  burst: 1
  max_retries: 2               # retries after a 429 or 5xx, -1 disables
  disabled: false              # true skips the classifier and semantic search

store:
  backend: file                # file | sqlite
  dir: ~/.postai/swagger       # file backend, one JSON file per document
  dsn: ~/.postai/postai.db     # sqlite backend

request:
  timeout_ms: 5000
  # base_url: http://localhost:8080
  # headers:
  #   Authorization: Bearer <token>

loader:
  timeout_seconds: 10
  max_retries: 2               # retries after a transient failure, -1 disables

search:
  cache_size: 128
  disable_semantic: false

log:
  level: info                  # trace | debug | info | warn | error
  json: false

metrics:
  # addr: 127.0.0.1:9464       # serve /metrics when set
`
