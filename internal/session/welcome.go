package session

// WelcomeHTML is the page a new session starts with.
const WelcomeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
  <title>AI Assistant</title>
  <style>
    body {
      margin: 0;
      padding: 0;
      background: linear-gradient(to right, #f0f0f0, #dcdcdc);
      height: 100dvh;
      display: grid;
      place-items: center;
      font-family: 'Segoe UI', sans-serif;
      color: #333;
    }

    .container {
      text-align: center;
      animation: fadeIn 1.5s ease-out;
    }

    h1 {
      font-size: 42px;
      margin-bottom: 10px;
    }

    h1 span {
      font-weight: normal;
      font-size: 24px;
      color: #777;
    }

    @keyframes fadeIn {
      from { opacity: 0; transform: translateY(-20px); }
      to { opacity: 1; transform: translateY(0); }
    }
  </style>
</head>
<body>
  <div class="container">
    <h1>
      <span>Grok is listening...</span><br/>
      What do you want to develop?
    </h1>
  </div>
</body>
</html>
`
