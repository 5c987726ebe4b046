package scanner

import "regexp"

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// pattern is one entry in the fixed pattern table: a regex, its base
// severity, a human description, the categories it belongs to, and the
// partner pattern ids that escalate it when matched in the same file.
type pattern struct {
	id          string
	re          *regexp.Regexp
	severity    Severity
	description string
	categories  []string
	// escalatesWith lists pattern ids that, when matched in the same file,
	// raise this pattern's severity to escalateTo.
	escalatesWith []string
	escalateTo    Severity
}

// patternTable is the fixed, declaration-ordered set of patterns the
// engine evaluates against every scanned line. Matching happens in this
// order; findings are sorted afterward by (severity desc, file asc, line
// asc), so table order only affects coupling evaluation, not output order.
var patternTable = []pattern{
	// Family 1: RCE / download-and-execute.
	{
		id:          "rce.curl_pipe_bash",
		re:          regexp.MustCompile(`curl\s+[^|]*\|\s*(bash|sh|zsh)\b`),
		severity:    SeverityCritical,
		description: "pipes a curl download directly into a shell interpreter",
		categories:  []string{"rce"},
	},
	{
		id:          "rce.wget_pipe_shell",
		re:          regexp.MustCompile(`wget\s+[^|]*\|\s*sh\b`),
		severity:    SeverityCritical,
		description: "pipes a wget download directly into a shell interpreter",
		categories:  []string{"rce"},
	},
	{
		id:          "rce.eval_curl",
		re:          regexp.MustCompile(`eval\s*"\$\(curl`),
		severity:    SeverityCritical,
		description: "evaluates the output of a curl download",
		categories:  []string{"rce"},
	},
	{
		id:          "rce.process_substitution_curl",
		re:          regexp.MustCompile(`<\(curl[^)]*\)`),
		severity:    SeverityCritical,
		description: "feeds a curl download through process substitution",
		categories:  []string{"rce"},
	},

	// Family 2: destructive ops.
	{
		id:          "destructive.rm_rf_root",
		re:          regexp.MustCompile(`rm\s+-rf?\s+/(\s|$)`),
		severity:    SeverityCritical,
		description: "recursively force-removes the filesystem root",
		categories:  []string{"destructive"},
	},
	{
		id:          "destructive.dd_if",
		re:          regexp.MustCompile(`dd\s+if=`),
		severity:    SeverityCritical,
		description: "raw device write via dd, can destroy a block device",
		categories:  []string{"destructive"},
	},
	{
		id:          "destructive.fork_bomb",
		re:          regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};:`),
		severity:    SeverityCritical,
		description: "shell fork bomb",
		categories:  []string{"destructive"},
	},

	// Family 3: insecure transport.
	{
		id:          "transport.curl_http",
		re:          regexp.MustCompile(`curl\s+http://`),
		severity:    SeverityWarning,
		description: "downloads over plaintext HTTP",
		categories:  []string{"insecure_transport"},
		escalatesWith: []string{
			"rce.curl_pipe_bash", "rce.wget_pipe_shell", "cicd.install_sh_exec",
		},
		escalateTo: SeverityCritical,
	},
	{
		id:          "transport.wget_http",
		re:          regexp.MustCompile(`wget\s+http://`),
		severity:    SeverityWarning,
		description: "downloads over plaintext HTTP",
		categories:  []string{"insecure_transport"},
	},
	{
		id:          "cicd.install_sh_exec",
		re:          regexp.MustCompile(`>\s*install\.sh\s*;.*sh\s+install\.sh`),
		severity:    SeverityWarning,
		description: "writes and immediately executes a downloaded install script",
		categories:  []string{"insecure_transport"},
		escalatesWith: []string{
			"transport.curl_http", "transport.wget_http",
		},
		escalateTo: SeverityCritical,
	},

	// Family 4: obfuscation.
	{
		id:          "obfuscation.base64_pipe_shell",
		re:          regexp.MustCompile(`base64\s+(-d|--decode)\s*\|\s*sh\b`),
		severity:    SeverityCritical,
		description: "decodes a base64 blob directly into a shell",
		categories:  []string{"obfuscation"},
	},
	{
		id:          "obfuscation.base64_decode",
		re:          regexp.MustCompile(`base64\s+(-d|--decode)\b`),
		severity:    SeverityInfo,
		description: "decodes a base64 blob",
		categories:  []string{"obfuscation"},
		escalatesWith: []string{
			"obfuscation.eval_generic",
		},
		escalateTo: SeverityCritical,
	},
	{
		id:          "obfuscation.eval_generic",
		re:          regexp.MustCompile(`\beval\b`),
		severity:    SeverityInfo,
		description: "evaluates dynamically constructed code",
		categories:  []string{"obfuscation"},
	},
	{
		id:          "obfuscation.hex_escape_chain",
		re:          regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){8,}`),
		severity:    SeverityCritical,
		description: "long chain of hex-escaped bytes, consistent with obfuscated payload",
		categories:  []string{"obfuscation"},
	},
}

// credentialPatterns match read-access to credential stores or bare
// credential tokens in export/read context. Severity starts at warning;
// the credential detector escalates to critical when coupled with
// exfiltration.
var credentialPatterns = []pattern{
	{id: "credential.aws", re: regexp.MustCompile(`~/\.aws/credentials`), severity: SeverityWarning, description: "reads AWS credential file"},
	{id: "credential.ssh_key", re: regexp.MustCompile(`~/\.ssh/id_[A-Za-z0-9_]+`), severity: SeverityWarning, description: "reads an SSH private key"},
	{id: "credential.docker_config", re: regexp.MustCompile(`~/\.docker/config\.json`), severity: SeverityWarning, description: "reads Docker registry credentials"},
	{id: "credential.kube_config", re: regexp.MustCompile(`~/\.kube/config`), severity: SeverityWarning, description: "reads a Kubernetes config file"},
	{id: "credential.npmrc", re: regexp.MustCompile(`~/\.npmrc`), severity: SeverityWarning, description: "reads an npm auth token file"},
	{id: "credential.pypirc", re: regexp.MustCompile(`~/\.pypirc`), severity: SeverityWarning, description: "reads a PyPI credential file"},
	{id: "credential.netrc", re: regexp.MustCompile(`~/\.netrc`), severity: SeverityWarning, description: "reads a netrc credential file"},
	{id: "credential.api_token_env", re: regexp.MustCompile(`\b(OPENAI|ANTHROPIC)_API_KEY\b`), severity: SeverityWarning, description: "references a known API token environment variable"},
}

// exfiltrationPatterns mark the same-file companion that turns a
// credential read into exfiltration.
var exfiltrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\|\s*curl\b`),
	regexp.MustCompile(`\|\s*nc\b`),
	regexp.MustCompile(`\|\s*base64\b`),
	regexp.MustCompile(`>\s*/dev/tcp/`),
}

// reverseShellPatterns are always critical and carry their protocol
// family in description.
var reverseShellPatterns = []pattern{
	{id: "reverse_shell.bash_tcp", re: regexp.MustCompile(`bash\s+-i\s*>&\s*/dev/tcp/`), severity: SeverityCritical, description: "bash reverse shell over TCP"},
	{id: "reverse_shell.bash_udp", re: regexp.MustCompile(`bash\s+-i\s*>&\s*/dev/udp/`), severity: SeverityCritical, description: "bash reverse shell over UDP"},
	{id: "reverse_shell.nc_exec", re: regexp.MustCompile(`\bnc\s+(-[a-zA-Z]*e\S*\s+)`), severity: SeverityCritical, description: "netcat reverse shell (-e exec flag)"},
	{id: "reverse_shell.socat_exec", re: regexp.MustCompile(`\bsocat\b[^\n]*\bEXEC\b`), severity: SeverityCritical, description: "socat reverse shell (EXEC directive)"},
	{id: "reverse_shell.python_socket", re: regexp.MustCompile(`python[23]?\s+-c\s*['"].*import\s+socket`), severity: SeverityCritical, description: "python reverse shell via the socket module"},
	{id: "reverse_shell.perl_socket", re: regexp.MustCompile(`perl\s+-e\s*['"].*use\s+Socket`), severity: SeverityCritical, description: "perl reverse shell via the Socket module"},
}

// cicdSecretTokens mark a CI/CD file as handling secrets, which escalates
// the presence finding from warning to critical. Both the literal
// "secrets:" block key and the GitHub Actions expression syntax count.
var cicdSecretTokens = []*regexp.Regexp{
	regexp.MustCompile(`secrets:`),
	regexp.MustCompile(`\$\{\{\s*secrets\.[A-Za-z0-9_]+\s*\}\}`),
	regexp.MustCompile(`(?i)raw\s+environment\s+exfiltrat`),
}
