package policy

// BuiltinPolicies returns the policies compiled into the binary.
func BuiltinPolicies() []Policy {
	return []Policy{
		insecureDownloadPolicy(),
		uncheckedDownloadPolicy(),
	}
}

// insecureDownloadPolicy blocks plain-HTTP downloads that have no
// checksum. Without TLS or a declared digest there is nothing tying
// the fetched bytes to what the manifest author intended.
func insecureDownloadPolicy() Policy {
	return Policy{
		Name:        "insecure-download",
		Description: "Blocks http:// downloads that declare no sha256 checksum",
		Severity:    SeverityError,
		Rego: `package ubuntusetup.policies.insecure_download

import rego.v1

deny contains violation if {
	input.kind == "downloaded-file"
	startswith(input.params.url, "http://")
	not input.params.sha256
	violation := {
		"message": sprintf("download %s uses http:// without a sha256 checksum", [input.id]),
		"severity": "error",
		"resource": input.id,
	}
}
`,
	}
}

// uncheckedDownloadPolicy warns about downloads with no declared
// checksum even over https.
func uncheckedDownloadPolicy() Policy {
	return Policy{
		Name:        "unchecked-download",
		Description: "Warns about downloads with no sha256 checksum",
		Severity:    SeverityWarning,
		Rego: `package ubuntusetup.policies.unchecked_download

import rego.v1

deny contains violation if {
	input.kind == "downloaded-file"
	startswith(input.params.url, "https://")
	not input.params.sha256
	violation := {
		"message": sprintf("download %s declares no sha256 checksum", [input.id]),
		"severity": "warning",
		"resource": input.id,
	}
}
`,
	}
}
