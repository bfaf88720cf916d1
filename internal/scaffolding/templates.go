package scaffolding

// ProjectTemplate is a named set of files written by `kiln init`.
type ProjectTemplate struct {
	Name        string
	Description string
	Files       []FileTemplate
}

// FileTemplate is one generated file. Path and Content are text/template
// sources rendered with a TemplateContext.
type FileTemplate struct {
	Path    string
	Content string
}

// TemplateContext holds the values available to templates.
type TemplateContext struct {
	ProjectName string
	Title       string
	MountID     string
	OutDir      string
	ReloadPath  string
	EntryName   string
}

// DefaultTemplate is used when no template is named.
const DefaultTemplate = "flowbite"

// GetBuiltinTemplates returns all built-in project templates
func GetBuiltinTemplates() map[string]ProjectTemplate {
	return map[string]ProjectTemplate{
		"flowbite": getFlowbiteTemplate(),
		"react":    getReactTemplate(),
	}
}

func getFlowbiteTemplate() ProjectTemplate {
	return ProjectTemplate{
		Name:        "flowbite",
		Description: "React with Tailwind CSS and Flowbite, dark mode applied before first paint",
		Files: []FileTemplate{
			{Path: "src/main.tsx", Content: flowbiteMainTSX},
			{Path: "src/App.tsx", Content: flowbiteAppTSX},
			{Path: "src/index.css", Content: indexCSS},
			{Path: ".flowbite-react/init.tsx", Content: flowbiteInitTSX},
			{Path: "index.html", Content: indexHTML},
			{Path: "package.json", Content: flowbitePackageJSON},
			{Path: "tsconfig.json", Content: tsconfigJSON},
			{Path: ".gitignore", Content: gitignore},
		},
	}
}

func getReactTemplate() ProjectTemplate {
	return ProjectTemplate{
		Name:        "react",
		Description: "Plain React with Tailwind CSS",
		Files: []FileTemplate{
			{Path: "src/main.tsx", Content: reactMainTSX},
			{Path: "src/App.tsx", Content: reactAppTSX},
			{Path: "src/index.css", Content: indexCSS},
			{Path: "index.html", Content: indexHTML},
			{Path: "package.json", Content: reactPackageJSON},
			{Path: "tsconfig.json", Content: tsconfigJSON},
			{Path: ".gitignore", Content: gitignore},
		},
	}
}

const flowbiteMainTSX = `import { initThemeMode } from "flowbite-react/theme/mode-script";
import { StrictMode } from "react";
import { createRoot } from "react-dom/client";
import { ThemeInit } from "../.flowbite-react/init";
import App from "./App";

import "./index.css";

const root = document.getElementById("{{.MountID}}");
if (!root) throw new Error("Root element not found");

createRoot(root).render(
  <StrictMode>
    <ThemeInit />
    <App />
  </StrictMode>,
);

initThemeMode();
`

const flowbiteAppTSX = `import { Button, DarkThemeToggle } from "flowbite-react";

export default function App() {
  return (
    <main className="flex min-h-screen flex-col items-center justify-center gap-6 bg-white px-4 dark:bg-gray-900">
      <DarkThemeToggle className="absolute top-4 right-4" />
      <h1 className="text-3xl font-bold text-gray-900 dark:text-white">{{.Title}}</h1>
      <p className="text-gray-500 dark:text-gray-400">
        Edit <code>src/App.tsx</code> and save to reload.
      </p>
      <Button href="https://flowbite-react.com">Flowbite React</Button>
    </main>
  );
}
`

const flowbiteInitTSX = `// Generated by kiln init. Mirrors the store initialiser of the flowbite-react CLI.
import { StoreInit } from "flowbite-react/store/init";

export const CONFIG = { dark: true, prefix: "", version: 4 };

export function ThemeInit() {
  return <StoreInit {...CONFIG} />;
}

ThemeInit.displayName = "ThemeInit";
`

const reactMainTSX = `import { StrictMode } from "react";
import { createRoot } from "react-dom/client";
import App from "./App";

import "./index.css";

const root = document.getElementById("{{.MountID}}");
if (!root) throw new Error("Root element not found");

createRoot(root).render(
  <StrictMode>
    <App />
  </StrictMode>,
);
`

const reactAppTSX = `export default function App() {
  return (
    <main className="flex min-h-screen flex-col items-center justify-center gap-4">
      <h1 className="text-3xl font-bold">{{.Title}}</h1>
      <p className="text-gray-500">
        Edit <code>src/App.tsx</code> and save to reload.
      </p>
    </main>
  );
}
`

const indexCSS = `@import "tailwindcss";
`

const indexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="/{{.OutDir}}/{{.EntryName}}.css" />
  </head>
  <body>
    <div id="{{.MountID}}"></div>
    <script type="module" src="/{{.OutDir}}/{{.EntryName}}.js"></script>
    <script>
      // Live reload while running kiln dev; harmless in production.
      if (location.hostname === "localhost" || location.hostname === "127.0.0.1") {
        new EventSource("{{.ReloadPath}}").onmessage = () => location.reload();
      }
    </script>
  </body>
</html>
`

const flowbitePackageJSON = `{
  "name": "{{.ProjectName}}",
  "private": true,
  "version": "0.0.0",
  "type": "module",
  "scripts": {
    "dev": "kiln dev",
    "build": "kiln build"
  },
  "dependencies": {
    "flowbite-react": "^0.11.7",
    "react": "^19.1.0",
    "react-dom": "^19.1.0"
  },
  "devDependencies": {
    "@tailwindcss/cli": "^4.1.8",
    "@types/react": "^19.1.6",
    "@types/react-dom": "^19.1.5",
    "tailwindcss": "^4.1.8",
    "typescript": "^5.8.3"
  }
}
`

const reactPackageJSON = `{
  "name": "{{.ProjectName}}",
  "private": true,
  "version": "0.0.0",
  "type": "module",
  "scripts": {
    "dev": "kiln dev",
    "build": "kiln build"
  },
  "dependencies": {
    "react": "^19.1.0",
    "react-dom": "^19.1.0"
  },
  "devDependencies": {
    "@tailwindcss/cli": "^4.1.8",
    "@types/react": "^19.1.6",
    "@types/react-dom": "^19.1.5",
    "tailwindcss": "^4.1.8",
    "typescript": "^5.8.3"
  }
}
`

const tsconfigJSON = `{
  "compilerOptions": {
    "target": "ES2020",
    "lib": ["ES2020", "DOM", "DOM.Iterable"],
    "module": "ESNext",
    "moduleResolution": "bundler",
    "jsx": "react-jsx",
    "strict": true,
    "noEmit": true,
    "skipLibCheck": true
  },
  "include": ["src", ".flowbite-react"]
}
`

const gitignore = `node_modules/
{{.OutDir}}/
`
